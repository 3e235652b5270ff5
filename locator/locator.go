// Package locator 维护配置服务实例的本地缓存。
//
// 读路径从不发起网络请求：缓存非空时直接返回；缓存为空时异步触发一次刷新，
// 并立即返回携带服务发现地址的 NoServiceAvailableError。
// 刷新在单个后台协程中执行，由令牌桶限流，并通过 refreshPending 标记保证
// 任意时刻最多排队一个刷新任务。
//
// 配置了静态地址（config-service 属性或 BEACON_CONFIG_SERVICE 环境变量）时，
// 服务发现被完全禁用。
//
//	loc, _ := locator.New(&locator.Config{MetaAddress: "http://meta:8080", AppID: "demo"}, metaClient,
//	    locator.WithLogger(logger))
//	_ = loc.Initialize(ctx)
//	defer loc.Close()
//
//	services, err := loc.GetServices(ctx)
package locator

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/meta"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/ratelimit"
	"github.com/ceyewan/beacon/xerrors"
)

// Locator 配置服务定位器
type Locator struct {
	cfg         *Config
	meta        meta.Client
	limiter     ratelimit.Limiter
	ownsLimiter bool
	limit       ratelimit.Limit
	limitKey    string
	props       PropertySource
	evictor     func([]model.Endpoint)
	lookupEnv   func(string) (string, bool)
	logger      clog.Logger
	metrics     *locatorMetrics

	services       atomic.Pointer[[]model.ServiceInstance]
	refreshPending atomic.Bool
	initialized    atomic.Bool
	closed         atomic.Bool

	tasks  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建定位器，未配置静态地址时 metaClient 不能为空
func New(cfg *Config, metaClient meta.Client, opts ...Option) (*Locator, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "config is nil")
	}
	cfg.setDefaults()
	o := applyOptions(opts)

	override, _ := resolveOverride(cfg.Properties, o.props, o.lookupEnv)
	overridden := len(parseOverride(override)) > 0
	if err := cfg.validate(overridden); err != nil {
		return nil, err
	}
	if metaClient == nil && !overridden {
		return nil, ErrMetaClientNil
	}

	l := &Locator{
		cfg:       cfg,
		meta:      metaClient,
		limiter:   o.limiter,
		limit:     ratelimit.Limit{Rate: cfg.DiscoveryQPS, Burst: 1},
		limitKey:  "discovery:" + cfg.AppID,
		props:     o.props,
		evictor:   o.evictor,
		lookupEnv: o.lookupEnv,
		logger:    o.logger.With(clog.String("app_id", cfg.AppID)),
		metrics:   newLocatorMetrics(o.meter, cfg.AppID),
		tasks:     make(chan struct{}, 1),
	}
	if l.limiter == nil {
		limiter, err := ratelimit.NewStandalone(nil, ratelimit.WithLogger(o.logger), ratelimit.WithMeter(o.meter))
		if err != nil {
			return nil, err
		}
		l.limiter = limiter
		l.ownsLimiter = true
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l, nil
}

// Initialize 解析静态地址；没有静态地址时同步刷新一次并启动周期刷新。
//
// 首次刷新失败不会返回错误，后续读取会触发异步刷新。重复调用无副作用。
func (l *Locator) Initialize(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if !l.initialized.CompareAndSwap(false, true) {
		return nil
	}

	override, source := resolveOverride(l.cfg.Properties, l.props, l.lookupEnv)
	if instances := parseOverride(override); len(instances) > 0 {
		l.store(ctx, instances)
		l.logger.InfoContext(ctx, "using static config services, discovery disabled",
			clog.String("source", source),
			clog.String("config_services", override))
		return nil
	}

	if err := l.Refresh(ctx); err != nil {
		l.logger.WarnContext(ctx, "initial discovery failed", clog.Error(err))
	}

	l.wg.Add(1)
	go l.run()
	return nil
}

// GetServices 返回缓存的实例列表，缓存为空时触发异步刷新并快速失败
func (l *Locator) GetServices(ctx context.Context) ([]model.ServiceInstance, error) {
	if services := l.services.Load(); services != nil && len(*services) > 0 {
		return slices.Clone(*services), nil
	}

	l.TryScheduleRefresh()
	l.metrics.quickFail.Inc(ctx, l.metrics.appID)
	return nil, &xerrors.NoServiceAvailableError{URL: l.TraceURL()}
}

// TraceURL 返回服务发现地址，用于排查
func (l *Locator) TraceURL() string {
	if l.meta == nil {
		return l.cfg.MetaAddress
	}
	return l.meta.TraceURL(model.Endpoint(l.cfg.MetaAddress), l.discoveryOptions())
}

// TryScheduleRefresh 已有刷新任务排队或执行中时不做任何事，返回是否提交了新任务
func (l *Locator) TryScheduleRefresh() bool {
	if !l.refreshPending.CompareAndSwap(false, true) {
		return false
	}
	select {
	case l.tasks <- struct{}{}:
	default:
	}
	return true
}

// Refresh 同步执行一次刷新并返回最终错误，受限流约束
func (l *Locator) Refresh(ctx context.Context) error {
	if l.meta == nil {
		return nil
	}

	allowed, err := l.limiter.Allow(ctx, l.limitKey, l.limit)
	if err != nil {
		l.logger.WarnContext(ctx, "discovery limiter failed, skip refresh", clog.Error(err))
	}
	if err != nil || !allowed {
		l.metrics.refreshed(ctx, outcomeThrottled)
		return ErrThrottled
	}

	var lastErr error
	for attempt := 1; attempt <= l.cfg.DiscoveryAttempts; attempt++ {
		if attempt > 1 {
			if err := l.sleep(ctx, l.cfg.DiscoveryRetryDelay); err != nil {
				lastErr = err
				break
			}
		}

		services, err := l.meta.GetServices(ctx, model.Endpoint(l.cfg.MetaAddress), l.discoveryOptions())
		if err == nil && len(services) == 0 {
			err = ErrEmptyServices
		}
		if err != nil {
			lastErr = err
			l.logger.DebugContext(ctx, "discovery attempt failed", clog.Int("attempt", attempt), clog.Error(err))
			continue
		}

		l.store(ctx, services)
		l.metrics.refreshed(ctx, outcomeSuccess)
		if l.evictor != nil {
			l.evictor(model.Endpoints(services))
		}
		return nil
	}

	l.metrics.refreshed(ctx, outcomeFailure)
	return &xerrors.DiscoveryError{URL: l.TraceURL(), Attempts: l.cfg.DiscoveryAttempts, Cause: lastErr}
}

// Close 停止后台刷新并等待其退出
func (l *Locator) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.cancel()
	l.wg.Wait()
	if l.ownsLimiter {
		return l.limiter.Close()
	}
	return nil
}

// ============================================================================
// 内部实现
// ============================================================================

func (l *Locator) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.tasks:
			// 先清除标记再刷新，刷新期间到达的请求会重新排队
			if l.refreshPending.Swap(false) {
				l.refreshInBackground()
			}
		case <-ticker.C:
			l.refreshInBackground()
		}
	}
}

func (l *Locator) refreshInBackground() {
	err := l.Refresh(l.ctx)
	switch {
	case err == nil:
	case xerrors.Is(err, ErrThrottled):
		l.logger.Debug("discovery throttled")
	default:
		l.logger.Warn("discovery failed, keep cached services", clog.Error(err))
	}
}

func (l *Locator) store(ctx context.Context, services []model.ServiceInstance) {
	snapshot := slices.Clone(services)
	l.services.Store(&snapshot)
	l.metrics.cached(ctx, len(snapshot))
	l.logger.DebugContext(ctx, "config services updated", clog.Int("instances", len(snapshot)))
}

func (l *Locator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrClosed
	}
}

func (l *Locator) discoveryOptions() model.DiscoveryOptions {
	return model.DiscoveryOptions{AppID: l.cfg.AppID, ClientIP: l.cfg.ClientIP}
}
