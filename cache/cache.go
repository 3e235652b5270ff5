// Package cache 提供按键缓存对象的单机内存缓存，基于 otter v2 实现。
//
// 客户端用它保存每个命名空间最近一次拉取到的配置快照，服务端返回
// NOT_MODIFIED 时直接读取缓存：
//
//	c, _ := cache.New[*model.ConfigResult](&cache.Config{Capacity: 1000, TTL: 30 * time.Minute},
//	    cache.WithLogger(logger), cache.WithMeter(meter))
//	defer c.Close()
//
//	c.Set("application", cfg)
//	cfg, ok := c.Get(ctx, "application")
//
// 过期采用访问过期语义：条目在 TTL 内未被读取才会淘汰。
package cache

import (
	"context"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/xerrors"
)

var ErrInvalidConfig = xerrors.New("cache: invalid config")

const (
	MetricRequests = "beacon_cache_requests_total"
	LabelCache     = "cache"
	LabelResult    = "result"
)

// Stats 命中统计快照
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache 并发安全的本地缓存
type Cache[V any] struct {
	cache    *otter.Cache[string, V]
	recorder *stats.Counter
	logger   clog.Logger
	requests metrics.Counter
	name     string
}

// New 创建本地缓存，cfg 为 nil 时使用默认配置
func New[V any](cfg *Config, opts ...Option) (*Cache[V], error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard(), name: "default"}
	for _, opt := range opts {
		opt(o)
	}

	recorder := stats.NewCounter()
	oc, err := otter.New(&otter.Options[string, V]{
		MaximumSize:      cfg.Capacity,
		StatsRecorder:    recorder,
		ExpiryCalculator: otter.ExpiryAccessing[string, V](cfg.TTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build otter cache")
	}

	requests, err := o.meter.Counter(MetricRequests, "Local cache lookups by result")
	if err != nil {
		return nil, xerrors.Wrap(err, "create cache counter")
	}

	o.logger.Debug("local cache created",
		clog.String("name", o.name),
		clog.Int("capacity", cfg.Capacity),
		clog.Duration("ttl", cfg.TTL))
	return &Cache[V]{cache: oc, recorder: recorder, logger: o.logger, requests: requests, name: o.name}, nil
}

// Get 读取缓存，命中时刷新访问过期时间
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	v, ok := c.cache.GetIfPresent(key)
	result := "miss"
	if ok {
		result = "hit"
	}
	c.requests.Inc(ctx, metrics.L(LabelCache, c.name), metrics.L(LabelResult, result))
	return v, ok
}

// Set 写入或覆盖缓存
func (c *Cache[V]) Set(key string, value V) {
	c.cache.Set(key, value)
}

// Invalidate 删除缓存
func (c *Cache[V]) Invalidate(key string) {
	c.cache.Invalidate(key)
}

// Len 估算当前条目数
func (c *Cache[V]) Len() int {
	return c.cache.EstimatedSize()
}

// Stats 返回累计命中统计
func (c *Cache[V]) Stats() Stats {
	s := c.recorder.Snapshot()
	return Stats{Hits: s.Hits, Misses: s.Misses, Evictions: s.Evictions}
}

// Close 停止 otter 的后台协程
func (c *Cache[V]) Close() error {
	c.cache.StopAllGoroutines()
	return nil
}
