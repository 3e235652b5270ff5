package clog

import "context"

// Logger 结构化日志接口
//
// 支持 Debug、Info、Warn、Error、Fatal 五个级别，每个级别都有带 Context 的版本，
// 带 Context 的版本会按 Option 配置从 Context 中提取字段。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 返回带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 返回追加命名空间的子 Logger
	//
	//   logger.WithNamespace("beacon").WithNamespace("locator")
	//   // namespace=beacon.locator
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，对共享同一 handler 的所有子 Logger 生效
	SetLevel(level Level) error

	// Flush 同步缓冲区
	Flush()
}
