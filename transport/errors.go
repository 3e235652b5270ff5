package transport

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrManagerClosed ChannelManager 已关闭
	ErrManagerClosed = xerrors.New("transport: channel manager closed")

	// ErrInvalidEndpoint 地址无法解析为 gRPC 目标
	ErrInvalidEndpoint = xerrors.Wrap(xerrors.ErrInvalidInput, "transport: invalid endpoint")
)
