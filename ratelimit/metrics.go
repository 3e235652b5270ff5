package ratelimit

import (
	"context"

	"github.com/ceyewan/beacon/metrics"
)

const (
	// MetricAllowed 允许通过的请求数
	MetricAllowed = "beacon_ratelimit_allowed_total"

	// MetricDenied 被拒绝的请求数
	MetricDenied = "beacon_ratelimit_denied_total"

	// MetricErrors 限流器系统错误数
	MetricErrors = "beacon_ratelimit_errors_total"

	// LabelMode 模式标签 (standalone/distributed)
	LabelMode = "mode"
)

type limiterMetrics struct {
	mode    string
	allowed metrics.Counter
	denied  metrics.Counter
	errors  metrics.Counter
}

func newLimiterMetrics(meter metrics.Meter, mode string) *limiterMetrics {
	if meter == nil {
		meter = metrics.Discard()
	}
	m := &limiterMetrics{mode: mode}
	var err error
	if m.allowed, err = meter.Counter(MetricAllowed, "Number of allowed requests"); err != nil {
		m.allowed, _ = metrics.Discard().Counter(MetricAllowed, "")
	}
	if m.denied, err = meter.Counter(MetricDenied, "Number of denied requests"); err != nil {
		m.denied, _ = metrics.Discard().Counter(MetricDenied, "")
	}
	if m.errors, err = meter.Counter(MetricErrors, "Number of limiter errors"); err != nil {
		m.errors, _ = metrics.Discard().Counter(MetricErrors, "")
	}
	return m
}

func (m *limiterMetrics) record(ctx context.Context, allowed bool) {
	label := metrics.L(LabelMode, m.mode)
	if allowed {
		m.allowed.Inc(ctx, label)
		return
	}
	m.denied.Inc(ctx, label)
}

func (m *limiterMetrics) fail(ctx context.Context) {
	m.errors.Inc(ctx, metrics.L(LabelMode, m.mode))
}
