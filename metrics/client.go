package metrics

import (
	"context"
	"time"

	"github.com/ceyewan/beacon/xerrors"
)

const (
	MetricClientRequestTotal    = "beacon_client_requests_total"
	MetricClientDurationSeconds = "beacon_client_request_duration_seconds"
)

// 长轮询请求可能持续数十秒，桶边界覆盖到 120s
var defaultClientDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 90, 120}

// ClientMetrics 配置中心客户端调用的 RED 指标集（请求数、耗时、结果）
type ClientMetrics struct {
	transport    string
	requestTotal Counter
	duration     Histogram
}

// NewClientMetrics 为指定传输类型（http/grpc）创建客户端指标，meter 为 nil 时使用 noop
func NewClientMetrics(m Meter, transport string) (*ClientMetrics, error) {
	if m == nil {
		m = Discard()
	}
	if transport == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "transport label is required")
	}

	counter, err := m.Counter(MetricClientRequestTotal, "Total number of config service client requests.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create client request counter")
	}
	histogram, err := m.Histogram(MetricClientDurationSeconds, "Config service client request duration in seconds.",
		WithUnit("s"), WithBuckets(defaultClientDurationBuckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create client duration histogram")
	}

	return &ClientMetrics{
		transport:    transport,
		requestTotal: counter,
		duration:     histogram,
	}, nil
}

// Observe 记录一次调用
func (c *ClientMetrics) Observe(ctx context.Context, operation, statusClass, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	labels := []Label{
		L(LabelTransport, c.transport),
		L(LabelOperation, operation),
		L(LabelStatusClass, statusClass),
		L(LabelOutcome, outcome),
	}
	c.requestTotal.Inc(ctx, labels...)
	c.duration.Record(ctx, elapsed.Seconds(), labels...)
}
