// Package xerrors 为 beacon 提供统一的错误处理工具。
//
// 包含两部分：
//   - 通用工具：Wrap/Wrapf 保留错误链，WithCode 附加机器可读错误码，Combine 合并多个错误
//   - 领域错误：配置中心客户端的错误分类（NotFound、StatusCode、Transport、NoServiceAvailable、Discovery）
//
// 这是基础包，不依赖 beacon 的其他组件。
package xerrors

import (
	"errors"
	"fmt"
)

// ============================================================================
// 哨兵错误
// ============================================================================

var (
	// ErrNotFound 远端资源不存在（HTTP 404 / gRPC NOT_FOUND）
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput 输入参数无效
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout 操作超时
	ErrTimeout = errors.New("timeout")

	// ErrUnavailable 服务或资源不可用
	ErrUnavailable = errors.New("unavailable")

	// ErrCanceled 操作被取消
	ErrCanceled = errors.New("canceled")

	// ErrStatusCode 非预期的响应状态码
	ErrStatusCode = errors.New("unexpected status code")

	// ErrTransport 网络或序列化失败
	ErrTransport = errors.New("transport error")

	// ErrNoServiceAvailable 服务定位器缓存为空
	ErrNoServiceAvailable = errors.New("no available config service")

	// ErrDiscovery 服务发现重试耗尽
	ErrDiscovery = errors.New("discovery failed")
)

// ============================================================================
// 错误包装
// ============================================================================

// Wrap 用上下文信息包装错误，保留错误链。err 为 nil 时返回 nil。
//
//	if err != nil {
//	    return xerrors.Wrap(err, "load config")
//	}
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 用格式化的上下文信息包装错误。
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// WithCode 用错误码包装错误。
func WithCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &CodedError{Code: code, Cause: err}
}

// CodedError 带有机器可读错误码的错误。
type CodedError struct {
	Code  string
	Cause error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

func (e *CodedError) Unwrap() error {
	return e.Cause
}

// GetCode 从错误链中提取错误码，没有则返回空字符串。
func GetCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// Must 如果 err 不为 nil 则 panic，仅用于初始化阶段。
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("must: %v", err))
	}
	return v
}

// ============================================================================
// 多错误
// ============================================================================

// Collector 收集多个错误，只保留第一个。
type Collector struct {
	err error
}

func (c *Collector) Collect(err error) {
	if err != nil && c.err == nil {
		c.err = err
	}
}

func (c *Collector) Err() error {
	return c.err
}

// MultiError 合并多个错误。
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%v (and %d more errors)", m.Errors[0], len(m.Errors)-1)
}

func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Combine 将多个错误合并为一个，忽略 nil。
func Combine(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		return &MultiError{Errors: nonNil}
	}
}

// 标准库函数再导出
var (
	New    = errors.New
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)
