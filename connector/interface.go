// Package connector 管理外部存储客户端（Redis、Etcd）的生命周期与健康状态。
//
// 连接器只负责建立和关闭连接，业务组件通过 GetClient 借用底层客户端：
// 分布式限流借用 Redis，Etcd 服务发现借用 Etcd。
//
//	conn, _ := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"}, connector.WithLogger(logger))
//	if err := conn.Connect(ctx); err != nil { ... }
//	defer conn.Close()
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 连接器通用接口
type Connector interface {
	Connect(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error
	IsHealthy() bool
	Name() string
}

// TypedConnector 暴露底层客户端
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

// RedisConnector Redis 连接器
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// EtcdConnector Etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
