package locator

import (
	"os"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/ratelimit"
)

// Option 定位器选项
type Option func(*options)

// PropertySource 本地应用属性来源，config.Loader 满足该接口
type PropertySource interface {
	GetString(key string) string
}

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	limiter   ratelimit.Limiter
	props     PropertySource
	evictor   func([]model.Endpoint)
	lookupEnv func(string) (string, bool)
}

// WithLogger 设置 Logger，自动追加 "locator" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("locator")
		}
	}
}

// WithMeter 设置 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithLimiter 使用外部限流器（如分布式限流器），定位器不负责关闭它
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}

// WithProperties 设置本地应用属性来源
func WithProperties(props PropertySource) Option {
	return func(o *options) {
		o.props = props
	}
}

// WithEvictor 刷新成功后以最新地址列表回调，用于清理过期的 gRPC 连接
func WithEvictor(fn func([]model.Endpoint)) Option {
	return func(o *options) {
		o.evictor = fn
	}
}

func withLookupEnv(fn func(string) (string, bool)) Option {
	return func(o *options) {
		o.lookupEnv = fn
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger:    clog.Discard(),
		meter:     metrics.Discard(),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
