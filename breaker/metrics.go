package breaker

const (
	// MetricRejectsTotal 被熔断拒绝的请求数
	MetricRejectsTotal = "beacon_breaker_rejects_total"

	// MetricStateChanges 状态变更次数
	MetricStateChanges = "beacon_breaker_state_changes_total"

	LabelKey       = "key"
	LabelFromState = "from_state"
	LabelToState   = "to_state"
)
