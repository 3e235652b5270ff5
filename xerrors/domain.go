package xerrors

import (
	"errors"
	"fmt"
)

// ============================================================================
// 领域错误分类
// ============================================================================

// NotFoundError 远端资源不存在（HTTP 404 / gRPC NOT_FOUND），本层从不重试。
type NotFoundError struct {
	Scene string
	Cause error
}

// NewNotFound 构造 NotFoundError
func NewNotFound(scene string, cause error) *NotFoundError {
	return &NotFoundError{Scene: scene, Cause: cause}
}

func (e *NotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Scene, e.Cause)
	}
	return e.Scene
}

func (e *NotFoundError) Unwrap() error        { return e.Cause }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StatusCodeError 非 200/304 的 HTTP 响应，携带状态码。
type StatusCodeError struct {
	Scene string
	Code  int
}

// NewStatusCode 构造 StatusCodeError
func NewStatusCode(scene string, code int) *StatusCodeError {
	return &StatusCodeError{Scene: scene, Code: code}
}

func (e *StatusCodeError) Error() string {
	if e.Scene == "" {
		return fmt.Sprintf("http status code: %d", e.Code)
	}
	return fmt.Sprintf("%s. Http status code: %d", e.Scene, e.Code)
}

func (e *StatusCodeError) Is(target error) bool { return target == ErrStatusCode }

// TransportError 网络、序列化或 RPC 失败。
//
// Code 为 gRPC 状态码名称（如 "Unavailable"），HTTP 传输为空。
type TransportError struct {
	Scene string
	Code  string
	Cause error
}

// NewTransport 构造 TransportError
func NewTransport(scene string, cause error) *TransportError {
	return &TransportError{Scene: scene, Cause: cause}
}

func (e *TransportError) Error() string {
	msg := e.Scene
	if msg == "" {
		msg = "transport error"
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s. Grpc status: %s", msg, e.Code)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TransportError) Unwrap() error        { return e.Cause }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// NoServiceAvailableError 服务定位器缓存为空时的快速失败错误，
// URL 为本次将要访问的服务发现地址，供运维排查。
type NoServiceAvailableError struct {
	URL string
}

func (e *NoServiceAvailableError) Error() string {
	return fmt.Sprintf("no available config service, discovery url: %s", e.URL)
}

func (e *NoServiceAvailableError) Is(target error) bool { return target == ErrNoServiceAvailable }

// DiscoveryError 服务发现在重试耗尽后的最终失败，只会出现在日志中。
type DiscoveryError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *DiscoveryError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("discover config services from %s failed after %d attempts: %v", e.URL, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("discover config services from %s failed: %v", e.URL, e.Cause)
}

func (e *DiscoveryError) Unwrap() error        { return e.Cause }
func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }

// ============================================================================
// 判定函数
// ============================================================================

// IsNotFound 判断错误链中是否包含 NotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStatusCode 返回错误链中的 HTTP 状态码
func IsStatusCode(err error) (int, bool) {
	var sc *StatusCodeError
	if errors.As(err, &sc) {
		return sc.Code, true
	}
	return 0, false
}

// IsTransport 判断错误链中是否包含 TransportError
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsNoServiceAvailable 判断是否为服务定位器的快速失败错误
func IsNoServiceAvailable(err error) bool {
	return errors.Is(err, ErrNoServiceAvailable)
}
