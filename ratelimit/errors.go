package ratelimit

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrConfigNil 配置无效
	ErrConfigNil = xerrors.New("ratelimit: invalid config")

	// ErrConnectorNil 分布式模式缺少 Redis 连接器
	ErrConnectorNil = xerrors.New("ratelimit: connector is nil")

	// ErrNotSupported 操作不支持
	ErrNotSupported = xerrors.New("ratelimit: operation not supported")

	// ErrKeyEmpty 限流键为空
	ErrKeyEmpty = xerrors.New("ratelimit: key is empty")

	// ErrInvalidLimit 限流规则无效
	ErrInvalidLimit = xerrors.New("ratelimit: invalid limit")

	// ErrClosed 限流器已关闭
	ErrClosed = xerrors.New("ratelimit: limiter closed")
)

// ErrScriptResult Lua 脚本返回值格式异常
var ErrScriptResult = xerrors.New("ratelimit: unexpected script result")
