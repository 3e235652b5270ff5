package transport

import (
	"crypto/tls"

	"google.golang.org/grpc/credentials"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
)

// Option 传输层选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	tls     *tls.Config
	creds   credentials.TransportCredentials
	factory ChannelFactory
}

// WithLogger 设置 Logger，自动追加 "transport" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("transport")
		}
	}
}

// WithMeter 设置 Meter，用于客户端 RED 指标
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithTLSConfig HTTP 传输使用的 TLS 配置，由调用方构造
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tls = cfg
	}
}

// WithCredentials gRPC 传输凭据，默认 insecure
func WithCredentials(creds credentials.TransportCredentials) Option {
	return func(o *options) {
		o.creds = creds
	}
}

// WithChannelFactory 替换默认的 gRPC 连接工厂，测试中用于 bufconn
func WithChannelFactory(factory ChannelFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
