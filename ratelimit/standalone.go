package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
)

// limiterWrapper 包装 rate.Limiter 并记录最后访问时间
type limiterWrapper struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func (w *limiterWrapper) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

type standaloneLimiter struct {
	cfg      *StandaloneConfig
	logger   clog.Logger
	metrics  *limiterMetrics
	limiters sync.Map // map[string]*limiterWrapper
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newStandalone(cfg *StandaloneConfig, logger clog.Logger, meter metrics.Meter) (Limiter, error) {
	if cfg == nil {
		cfg = &StandaloneConfig{}
	}
	cfg.setDefaults()
	if logger == nil {
		logger = clog.Discard()
	}

	l := &standaloneLimiter{
		cfg:     cfg,
		logger:  logger,
		metrics: newLimiterMetrics(meter, string(DriverStandalone)),
		stopCh:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanup(cfg.CleanupInterval, cfg.IdleTimeout)

	logger.Info("standalone rate limiter created",
		clog.Duration("cleanup_interval", cfg.CleanupInterval),
		clog.Duration("idle_timeout", cfg.IdleTimeout))
	return l, nil
}

func (l *standaloneLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *standaloneLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if err := validateLimit(limit, n); err != nil {
		return false, err
	}

	now := time.Now()
	w := l.getLimiter(key, limit)
	allowed := w.limiter.AllowN(now, n)
	w.touch(now)

	l.metrics.record(ctx, allowed)
	debugCheck(l.logger, key, allowed, limit, n)
	return allowed, nil
}

func (l *standaloneLimiter) Wait(ctx context.Context, key string, limit Limit) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if err := validateLimit(limit, 1); err != nil {
		return err
	}

	w := l.getLimiter(key, limit)
	err := w.limiter.Wait(ctx)
	w.touch(time.Now())
	return err
}

// getLimiter 获取或创建 key 对应的限流器，规则不同视为不同的桶
func (l *standaloneLimiter) getLimiter(key string, limit Limit) *limiterWrapper {
	cacheKey := fmt.Sprintf("%s:%v:%d", key, limit.Rate, limit.Burst)
	if v, ok := l.limiters.Load(cacheKey); ok {
		return v.(*limiterWrapper)
	}

	w := &limiterWrapper{limiter: rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst)}
	w.touch(time.Now())
	actual, _ := l.limiters.LoadOrStore(cacheKey, w)
	return actual.(*limiterWrapper)
}

func (l *standaloneLimiter) cleanup(interval, idleTimeout time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Now(), idleTimeout)
		case <-l.stopCh:
			return
		}
	}
}

func (l *standaloneLimiter) evictIdle(now time.Time, idleTimeout time.Duration) int {
	count := 0
	l.limiters.Range(func(key, value any) bool {
		w := value.(*limiterWrapper)
		if now.Sub(time.Unix(0, w.lastSeen.Load())) > idleTimeout {
			l.limiters.Delete(key)
			count++
		}
		return true
	})
	if count > 0 {
		l.logger.Debug("cleaned up idle limiters", clog.Int("count", count))
	}
	return count
}

func (l *standaloneLimiter) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	l.wg.Wait()
	return nil
}
