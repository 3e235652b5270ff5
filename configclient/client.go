// Package configclient 实现配置服务的 Watch（长轮询）与 Get（拉取快照）调用。
//
// HTTP 与 gRPC 两种实现共享同一套语义：
//   - 304 / 空流表示 NOT_MODIFIED
//   - 404 / NOT_FOUND 映射为 xerrors.NotFoundError
//   - 其他失败包装为带场景描述的 StatusCodeError 或 TransportError
//
// 设置了 AccessKeySecret 的请求会附带 HMAC 签名头。
package configclient

import (
	"context"
	"time"

	"github.com/ceyewan/beacon/breaker"
	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/signature"
	"github.com/ceyewan/beacon/xerrors"
)

// Client 配置服务客户端
type Client interface {
	// Watch 长轮询命名空间变化，无变化时返回 NOT_MODIFIED
	Watch(ctx context.Context, endpoint model.Endpoint, req *model.WatchRequest) (*model.WatchResponse, error)

	// Get 获取命名空间配置，releaseKey 未变化时返回 NOT_MODIFIED
	Get(ctx context.Context, endpoint model.Endpoint, req *model.GetConfigRequest) (*model.GetConfigResponse, error)
}

const (
	operationWatch = "watch"
	operationGet   = "get_config"

	sceneWatch = "Watch notifications failed"
	sceneGet   = "Get config failed"
)

// Config 配置服务调用参数
type Config struct {
	// WatchTimeout 长轮询读超时，需大于服务端挂起时间，默认 90s
	WatchTimeout time.Duration `json:"watch_timeout" yaml:"watch_timeout" mapstructure:"watch_timeout"`
	// GetTimeout 获取配置读超时，默认 5s
	GetTimeout time.Duration `json:"get_timeout" yaml:"get_timeout" mapstructure:"get_timeout"`
	// Codec gRPC 编解码器：json（默认）或 msgpack
	Codec string `json:"codec" yaml:"codec" mapstructure:"codec"`
}

func (c *Config) setDefaults() {
	if c.WatchTimeout <= 0 {
		c.WatchTimeout = 90 * time.Second
	}
	if c.GetTimeout <= 0 {
		c.GetTimeout = 5 * time.Second
	}
}

// Option 客户端选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	breaker breaker.Breaker
	now     func() time.Time
}

// WithLogger 设置 Logger，自动追加 "configclient" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("configclient")
		}
	}
}

// WithMeter 设置 Meter，仅 gRPC 实现使用，HTTP 指标由传输层记录
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithBreaker 按配置服务地址熔断，创建熔断器时应配合 IsBreakerSuccess 使用
func WithBreaker(b breaker.Breaker) Option {
	return func(o *options) {
		o.breaker = b
	}
}

// WithClock 设置签名时间来源
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IsBreakerSuccess 熔断器的成功判定：NotFound 与调用方取消不代表服务异常
func IsBreakerSuccess(err error) bool {
	return err == nil ||
		xerrors.IsNotFound(err) ||
		xerrors.Is(err, context.Canceled)
}

// base 两种实现共享的签名、熔断与错误包装
type base struct {
	cfg     *Config
	logger  clog.Logger
	breaker breaker.Breaker
	now     func() time.Time
}

func newBase(cfg *Config, o *options) base {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	return base{cfg: cfg, logger: o.logger, breaker: o.breaker, now: o.now}
}

func (b *base) sign(appID, rawURL, secret string) map[string]string {
	return signature.Headers(appID, rawURL, secret, b.now())
}

func (b *base) execute(ctx context.Context, endpoint model.Endpoint, fn func() (any, error)) (model.Status, error) {
	var (
		out any
		err error
	)
	if b.breaker == nil {
		out, err = fn()
	} else {
		out, err = b.breaker.Execute(ctx, endpoint.String(), fn)
	}
	if err != nil {
		return model.StatusOK, err
	}
	st, _ := out.(model.Status)
	return st, nil
}

// withScene 把传输层错误重新包装为带场景描述的领域错误
func withScene(scene, notFound string, err error) error {
	var (
		nf *xerrors.NotFoundError
		sc *xerrors.StatusCodeError
		te *xerrors.TransportError
	)
	switch {
	case xerrors.As(err, &nf):
		return xerrors.NewNotFound(scene+". "+notFound, nf)
	case xerrors.As(err, &sc):
		return xerrors.NewStatusCode(scene, sc.Code)
	case xerrors.As(err, &te):
		return &xerrors.TransportError{Scene: scene, Code: te.Code, Cause: te.Cause}
	default:
		return xerrors.NewTransport(scene, err)
	}
}

// 空通知列表与 NOT_MODIFIED 等价
func watchResponse(st model.Status, results []model.NotificationResult) (*model.WatchResponse, error) {
	if st == model.StatusNotModified || len(results) == 0 {
		return model.WatchNotModified(), nil
	}
	return model.WatchOK(results)
}

// 缺失配置与 NOT_MODIFIED 等价
func getConfigResponse(st model.Status, cfg *model.ConfigResult) (*model.GetConfigResponse, error) {
	if st == model.StatusNotModified || cfg == nil {
		return model.GetConfigNotModified(), nil
	}
	return model.GetConfigOK(cfg)
}
