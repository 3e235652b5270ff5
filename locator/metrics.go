package locator

import (
	"context"

	"github.com/ceyewan/beacon/metrics"
)

const (
	// MetricRefreshTotal 刷新次数，按结果区分
	MetricRefreshTotal = "beacon_locator_refresh_total"

	// MetricInstances 当前缓存的实例数
	MetricInstances = "beacon_locator_instances"

	// MetricQuickFailTotal 缓存为空导致的快速失败次数
	MetricQuickFailTotal = "beacon_locator_quick_fail_total"

	// LabelOutcome 结果标签 (success/failure/throttled)
	LabelOutcome = "outcome"
	// LabelAppID 应用标签
	LabelAppID = "app_id"
)

const (
	outcomeSuccess   = "success"
	outcomeFailure   = "failure"
	outcomeThrottled = "throttled"
)

type locatorMetrics struct {
	appID     metrics.Label
	refresh   metrics.Counter
	instances metrics.Gauge
	quickFail metrics.Counter
}

func newLocatorMetrics(meter metrics.Meter, appID string) *locatorMetrics {
	m := &locatorMetrics{appID: metrics.L(LabelAppID, appID)}
	var err error
	if m.refresh, err = meter.Counter(MetricRefreshTotal, "Number of config service discovery refreshes"); err != nil {
		m.refresh, _ = metrics.Discard().Counter(MetricRefreshTotal, "")
	}
	if m.instances, err = meter.Gauge(MetricInstances, "Number of cached config service instances"); err != nil {
		m.instances, _ = metrics.Discard().Gauge(MetricInstances, "")
	}
	if m.quickFail, err = meter.Counter(MetricQuickFailTotal, "Number of lookups failed fast on an empty cache"); err != nil {
		m.quickFail, _ = metrics.Discard().Counter(MetricQuickFailTotal, "")
	}
	return m
}

func (m *locatorMetrics) refreshed(ctx context.Context, outcome string) {
	m.refresh.Inc(ctx, m.appID, metrics.L(LabelOutcome, outcome))
}

func (m *locatorMetrics) cached(ctx context.Context, n int) {
	m.instances.Set(ctx, float64(n), m.appID)
}
