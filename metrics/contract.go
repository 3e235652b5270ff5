package metrics

import (
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
)

const (
	LabelOperation   = "operation"
	LabelTransport   = "transport"
	LabelTarget      = "target"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

const (
	OutcomeSuccess     = "success"
	OutcomeNotModified = "not_modified"
	OutcomeError       = "error"
)

// HTTPStatusClass 返回 HTTP 状态类：1xx/2xx/3xx/4xx/5xx/unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// GRPCStatusClass 将 gRPC 状态码转换为稳定的小写标签
func GRPCStatusClass(code codes.Code) string {
	if code == codes.OK {
		return "ok"
	}
	return strings.ToLower(code.String())
}
