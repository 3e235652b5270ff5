// Package meta 实现服务发现客户端：从 meta server 获取可用的配置服务实例。
//
// 提供三种实现：
//   - HTTP：GET {meta}/services/config，逗号分隔的多个 meta 地址按顺序尝试
//   - gRPC：MetaService.GetServices，空流视为空列表
//   - Etcd：直接读取注册中心中的实例记录
//
// 空列表是合法的成功结果，是否重试由服务定位器决定。
package meta

import (
	"context"
	"strings"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/model"
)

// Client 服务发现客户端
type Client interface {
	// GetServices 获取配置服务实例，失败时返回 xerrors.DiscoveryError
	GetServices(ctx context.Context, endpoint model.Endpoint, opts model.DiscoveryOptions) ([]model.ServiceInstance, error)

	// TraceURL 构造本次将要访问的地址，只用于日志与错误信息，不发起请求
	TraceURL(endpoint model.Endpoint, opts model.DiscoveryOptions) string
}

// Option 客户端选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 设置 Logger，自动追加 "meta" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("meta")
		}
	}
}

// WithMeter 设置 Meter，仅 gRPC 实现使用
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// splitMeta 拆分逗号分隔的 meta 地址
func splitMeta(endpoint model.Endpoint) []model.Endpoint {
	var out []model.Endpoint
	for _, part := range strings.Split(string(endpoint), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, model.Endpoint(part))
		}
	}
	return out
}
