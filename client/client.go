// Package client 组装服务定位器与配置服务客户端，提供面向应用的配置读取入口。
//
// 基本用法：
//
//	c, err := client.New(&client.Config{
//	    AppID:       "demo",
//	    MetaAddress: "http://meta:8080",
//	}, client.WithLogger(logger))
//	if err != nil { ... }
//	defer c.Close()
//
//	cfg, err := c.GetConfig(ctx, "application")
//	resp, err := c.Watch(ctx, []model.NotificationDefinition{{NamespaceName: "application", NotificationID: -1}})
//
// 传输方式通过 RegisterTransport 注册，内置 http（默认）与 grpc。
package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ceyewan/beacon/breaker"
	"github.com/ceyewan/beacon/cache"
	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/configclient"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/locator"
	"github.com/ceyewan/beacon/meta"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/ratelimit"
	"github.com/ceyewan/beacon/xerrors"
)

// Client 配置客户端
type Client struct {
	cfg       *Config
	transport string
	logger    clog.Logger

	locator *locator.Locator
	configs configclient.Client
	cache   *cache.Cache[*model.ConfigResult]

	next     atomic.Uint64
	mu       sync.Mutex
	messages map[string]*model.NotificationMessages

	closers []func() error
	closed  atomic.Bool
}

// New 创建客户端并初始化服务定位器
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "config is nil")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	factory, err := lookupTransport(cfg.Transport)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		transport: factory.Name,
		logger:    o.logger.With(clog.String("app_id", cfg.AppID), clog.String("transport", factory.Name)),
		messages:  make(map[string]*model.NotificationMessages),
	}
	if err := c.build(factory, o); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Info("beacon client started", clog.String("meta", cfg.Locator.MetaAddress))
	return c, nil
}

func (c *Client) build(factory TransportFactory, o *options) error {
	configs, err := cache.New[*model.ConfigResult](
		&cache.Config{Capacity: c.cfg.CacheCapacity, TTL: c.cfg.CacheTTL},
		cache.WithLogger(o.logger), cache.WithMeter(o.meter), cache.WithName("configs"))
	if err != nil {
		return err
	}
	c.cache = configs
	c.closers = append(c.closers, configs.Close)

	deps := &Deps{
		Logger:           o.logger,
		Meter:            o.meter,
		TransportOptions: o.transportOptions(),
		ConfigOptions:    []configclient.Option{configclient.WithLogger(o.logger), configclient.WithMeter(o.meter)},
	}
	if c.cfg.Breaker != nil {
		b, err := breaker.New(c.cfg.Breaker,
			breaker.WithLogger(o.logger),
			breaker.WithMeter(o.meter),
			breaker.WithIsSuccessful(configclient.IsBreakerSuccess))
		if err != nil {
			return err
		}
		deps.ConfigOptions = append(deps.ConfigOptions, configclient.WithBreaker(b))
	}

	stack, err := factory.Build(c.cfg, deps)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, stack.Close)
	c.configs = stack.Config

	metaClient := stack.Meta
	if c.cfg.Discovery == DiscoveryEtcd {
		if metaClient, err = c.buildEtcdMeta(o); err != nil {
			return err
		}
	}

	locOpts := []locator.Option{
		locator.WithLogger(o.logger),
		locator.WithMeter(o.meter),
		locator.WithProperties(o.props),
	}
	if stack.Evict != nil {
		locOpts = append(locOpts, locator.WithEvictor(stack.Evict))
	}
	if c.cfg.RateLimit != nil {
		limiter, err := c.buildLimiter(o)
		if err != nil {
			return err
		}
		locOpts = append(locOpts, locator.WithLimiter(limiter))
	}

	loc, err := locator.New(&c.cfg.Locator, metaClient, locOpts...)
	if err != nil {
		return err
	}
	// 定位器最先关闭，停止后台刷新后再释放连接
	c.closers = append(c.closers, loc.Close)
	c.locator = loc

	return loc.Initialize(context.Background())
}

func (c *Client) buildEtcdMeta(o *options) (meta.Client, error) {
	conn, err := connector.NewEtcd(c.cfg.Etcd, connector.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, conn.Close)
	if err := conn.Connect(context.Background()); err != nil {
		return nil, err
	}

	etcdMeta, err := meta.NewEtcd(conn, c.cfg.EtcdDiscovery, meta.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, etcdMeta.Close)
	return etcdMeta, nil
}

func (c *Client) buildLimiter(o *options) (ratelimit.Limiter, error) {
	rlOpts := []ratelimit.Option{ratelimit.WithLogger(o.logger), ratelimit.WithMeter(o.meter)}
	if c.cfg.RateLimit.Driver == ratelimit.DriverDistributed {
		conn, err := connector.NewRedis(c.cfg.Redis, connector.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, conn.Close)
		if err := conn.Connect(context.Background()); err != nil {
			return nil, err
		}
		rlOpts = append(rlOpts, ratelimit.WithRedisConnector(conn))
	}

	limiter, err := ratelimit.New(c.cfg.RateLimit, rlOpts...)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, limiter.Close)
	return limiter, nil
}

// Transport 返回实际使用的传输方式
func (c *Client) Transport() string {
	return c.transport
}

// Services 返回当前可用的配置服务实例
func (c *Client) Services(ctx context.Context) ([]model.ServiceInstance, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.locator.GetServices(ctx)
}

// Refresh 同步刷新服务列表
func (c *Client) Refresh(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.locator.Refresh(ctx)
}

// Watch 长轮询命名空间变化，OK 时记录各命名空间的版本提示供后续 GetConfig 使用
func (c *Client) Watch(ctx context.Context, notifications []model.NotificationDefinition) (*model.WatchResponse, error) {
	endpoint, err := c.pick(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.configs.Watch(ctx, endpoint, &model.WatchRequest{
		AppID:           c.cfg.AppID,
		Cluster:         c.cfg.Cluster,
		Notifications:   notifications,
		DataCenter:      c.cfg.DataCenter,
		ClientIP:        c.cfg.ClientIP,
		Label:           c.cfg.Label,
		AccessKeySecret: c.cfg.AccessKeySecret,
	})
	if err != nil {
		return nil, err
	}

	if resp.Status == model.StatusOK {
		c.mu.Lock()
		for _, n := range resp.Notifications {
			if !n.Messages.IsEmpty() {
				c.messages[n.NamespaceName] = c.messages[n.NamespaceName].Merge(n.Messages)
			}
		}
		c.mu.Unlock()
	}
	return resp, nil
}

// GetConfig 获取命名空间配置，未变化时返回本地缓存
func (c *Client) GetConfig(ctx context.Context, namespace string) (*model.ConfigResult, error) {
	endpoint, err := c.pick(ctx)
	if err != nil {
		return nil, err
	}

	cached, hasCached := c.cache.Get(ctx, namespace)
	req := &model.GetConfigRequest{
		AppID:           c.cfg.AppID,
		Cluster:         c.cfg.Cluster,
		Namespace:       namespace,
		DataCenter:      c.cfg.DataCenter,
		ClientIP:        c.cfg.ClientIP,
		Label:           c.cfg.Label,
		Messages:        c.hints(namespace),
		AccessKeySecret: c.cfg.AccessKeySecret,
	}
	if hasCached {
		req.ReleaseKey = cached.ReleaseKey
	}

	resp, err := c.configs.Get(ctx, endpoint, req)
	if err != nil {
		return nil, err
	}
	if resp.Status == model.StatusNotModified {
		if !hasCached {
			return nil, xerrors.Wrapf(ErrNoCachedConfig, "namespace %s", namespace)
		}
		return cached, nil
	}

	c.cache.Set(namespace, resp.Config)
	c.logger.DebugContext(ctx, "config updated",
		clog.String("namespace", namespace),
		clog.String("release_key", resp.Config.ReleaseKey))
	return resp.Config, nil
}

// Close 停止后台刷新并释放所有连接，可重复调用
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs xerrors.Collector
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs.Collect(c.closers[i]())
	}
	return errs.Err()
}

// pick 轮询选择配置服务实例
func (c *Client) pick(ctx context.Context) (model.Endpoint, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}
	services, err := c.locator.GetServices(ctx)
	if err != nil {
		return "", err
	}
	i := c.next.Add(1) - 1
	return services[i%uint64(len(services))].Endpoint(), nil
}

func (c *Client) hints(namespace string) *model.NotificationMessages {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m := c.messages[namespace]; !m.IsEmpty() {
		return model.NewNotificationMessages(m.Details)
	}
	return nil
}
