// Package config 为 beacon 客户端提供统一的配置加载能力，基于 Viper 实现。
//
// 特性：
//   - 多源配置加载：YAML/JSON 文件、环境变量、.env 文件
//   - 配置优先级：环境变量 > .env > 环境特定配置 > 基础配置
//   - 热更新：监听配置文件变化并按 key 通知
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{Name: "beacon", Paths: []string{"./conf"}})
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//
//	var cfg client.Config
//	_ = loader.UnmarshalKey("beacon", &cfg)
//
//	// 服务定位器把 Loader 当作本地应用属性来源
//	override := loader.GetString("config-service")
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 加载配置并启动文件监听
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// GetString 获取字符串配置值，不存在时返回空串
	GetString(key string) string

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，通过 context 取消监听
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置的有效性
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file" | "env"
	Timestamp time.Time
}
