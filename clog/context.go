package clog

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey string

const (
	// RequestIDKey Context 中请求 ID 的键
	RequestIDKey ctxKey = "request_id"
	// AppIDKey Context 中应用 ID 的键
	AppIDKey ctxKey = "app_id"
)

// NamespaceKey 日志中命名空间的字段名
const NamespaceKey = "namespace"

// WithRequestID 将请求 ID 写入 Context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// extractContextFields 按规则从 ctx 中提取字段追加到 attrs
func extractContextFields(ctx context.Context, o *options, attrs []slog.Attr) []slog.Attr {
	if ctx == nil || o == nil {
		return attrs
	}
	for _, cf := range o.contextFields {
		if val := ctx.Value(cf.Key); val != nil {
			attrs = append(attrs, slog.Any(cf.FieldName, val))
		}
	}
	if o.traceContext {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			attrs = append(attrs,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	return attrs
}

func namespaceAttr(o *options) (slog.Attr, bool) {
	if o == nil || len(o.namespaceParts) == 0 {
		return slog.Attr{}, false
	}
	return slog.String(NamespaceKey, strings.Join(o.namespaceParts, ".")), true
}
