// Package clog 为 beacon 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象 Logger 接口，不向调用方暴露 slog
//   - 层级命名空间，组件通过 WithLogger 注入后自动追加自己的命名空间
//   - 从 Context 中提取字段（request_id、OTel trace_id/span_id）
//   - 运行时动态调整日志级别
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "console"})
//	logger.Info("config service discovered", clog.String("address", addr))
//
//	locatorLogger := logger.WithNamespace("locator")
//	locatorLogger.WarnContext(ctx, "refresh failed", clog.Error(err))
package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用开发环境默认配置。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("beacon")
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}

// Must 类似 New，出错时 panic，仅用于初始化阶段
func Must(config *Config, opts ...Option) Logger {
	l, err := New(config, opts...)
	if err != nil {
		panic(err)
	}
	return l
}
