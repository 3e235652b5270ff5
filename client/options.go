package client

import (
	"crypto/tls"

	"google.golang.org/grpc/credentials"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/locator"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/transport"
)

// Option 客户端选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	props   locator.PropertySource
	tls     *tls.Config
	creds   credentials.TransportCredentials
	factory transport.ChannelFactory
}

// WithLogger 设置 Logger，自动追加 "beacon" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("beacon")
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

// WithProperties 本地应用属性来源，用于解析静态配置服务地址
func WithProperties(props locator.PropertySource) Option {
	return func(o *options) {
		o.props = props
	}
}

// WithTLSConfig HTTP 传输使用的 TLS 配置
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tls = cfg
	}
}

// WithCredentials gRPC 连接使用的传输凭证
func WithCredentials(creds credentials.TransportCredentials) Option {
	return func(o *options) {
		o.creds = creds
	}
}

// WithChannelFactory 自定义 gRPC 连接创建
func WithChannelFactory(factory transport.ChannelFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) transportOptions() []transport.Option {
	opts := []transport.Option{transport.WithLogger(o.logger), transport.WithMeter(o.meter)}
	if o.tls != nil {
		opts = append(opts, transport.WithTLSConfig(o.tls))
	}
	if o.creds != nil {
		opts = append(opts, transport.WithCredentials(o.creds))
	}
	if o.factory != nil {
		opts = append(opts, transport.WithChannelFactory(o.factory))
	}
	return opts
}
