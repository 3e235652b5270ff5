package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/beacon/connector"
)

// GetEtcdConfig 返回 Etcd 测试配置
// 默认连接 localhost:2379，可通过 BEACON_TEST_ETCD_ADDR 环境变量覆盖
func GetEtcdConfig() *connector.EtcdConfig {
	addr := os.Getenv("BEACON_TEST_ETCD_ADDR")
	if addr == "" {
		addr = "localhost:2379"
	}
	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   []string{addr},
		DialTimeout: 2 * time.Second,
	}
}

// EtcdConnector 获取已连接的 Etcd 连接器，etcd 不可用时跳过测试
func EtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	conn, err := connector.NewEtcd(GetEtcdConfig(), connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd connector: %v", err)
	}
	if err := conn.Connect(context.Background()); err != nil {
		_ = conn.Close()
		t.Skipf("etcd not available: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// EtcdClient 获取原生 Etcd 客户端
func EtcdClient(t *testing.T) *clientv3.Client {
	return EtcdConnector(t).GetClient()
}
