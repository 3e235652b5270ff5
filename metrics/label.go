package metrics

// Label 指标标签
//
// 避免高基数取值（请求 ID、完整 URL 等），地址类标签只使用 host:port。
type Label struct {
	Key   string
	Value string
}

// L 构造 Label
//
//	counter.Inc(ctx, metrics.L(metrics.LabelOperation, "watch"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
