package locator

import "github.com/ceyewan/beacon/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Wrap(xerrors.ErrInvalidInput, "locator: invalid config")

	// ErrMetaClientNil 未配置静态地址时必须提供服务发现客户端
	ErrMetaClientNil = xerrors.New("locator: meta client is nil")

	// ErrThrottled 本次刷新被限流，未发起网络请求
	ErrThrottled = xerrors.New("locator: discovery throttled")

	// ErrEmptyServices 服务发现返回空列表
	ErrEmptyServices = xerrors.New("locator: discovery returned no services")

	// ErrClosed 定位器已关闭
	ErrClosed = xerrors.New("locator: closed")
)
