package client

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Wrap(xerrors.ErrInvalidInput, "client: invalid config")

	// ErrUnknownTransport 未注册的传输方式
	ErrUnknownTransport = xerrors.New("client: unknown transport")

	// ErrNoCachedConfig 服务端返回 NOT_MODIFIED 但本地没有缓存
	ErrNoCachedConfig = xerrors.New("client: not modified but no cached config")

	// ErrClosed 客户端已关闭
	ErrClosed = xerrors.New("client: closed")
)
