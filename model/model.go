// Package model 定义在传输层、服务发现、配置客户端与服务定位器之间流转的请求与结果。
//
// 所有值对象在构造后视为不可变：构造函数会复制传入的切片与 map，
// 响应类型通过 OK/NotModified 构造函数保证状态与载荷的一致性。
package model

import (
	"strings"

	"github.com/ceyewan/beacon/xerrors"
)

const (
	// DefaultCluster 未指定集群时使用的集群名
	DefaultCluster = "default"

	// InitialNotificationID 表示客户端从未观察过该命名空间
	InitialNotificationID int64 = -1

	// ConfigServiceID 静态覆盖地址生成的实例使用的服务名
	ConfigServiceID = "config-service"
)

// Endpoint 不透明的地址：URL 或 scheme:///host:port 形式的 resolver 目标
type Endpoint string

func (e Endpoint) String() string { return string(e) }

// TrimSlash 去掉末尾的 "/"，便于拼接路径
func (e Endpoint) TrimSlash() string {
	return strings.TrimRight(string(e), "/")
}

// Status 调用结果的状态信号
type Status int

const (
	StatusOK Status = iota
	StatusNotModified
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotModified:
		return "NOT_MODIFIED"
	default:
		return "UNKNOWN"
	}
}

// ServiceInstance 服务发现返回的一个配置服务实例，顺序由服务发现端决定
type ServiceInstance struct {
	ServiceID  string `json:"serviceId"`
	InstanceID string `json:"instanceId"`
	Address    string `json:"address"`
}

// Endpoint 返回实例地址
func (s ServiceInstance) Endpoint() Endpoint {
	return Endpoint(s.Address)
}

// Endpoints 提取实例列表的地址
func Endpoints(instances []ServiceInstance) []Endpoint {
	out := make([]Endpoint, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Endpoint())
	}
	return out
}

// DiscoveryOptions 服务发现的查询参数
type DiscoveryOptions struct {
	AppID    string `json:"appId"`
	ClientIP string `json:"clientIp,omitempty"`
}

// Validate 检查必填字段
func (o DiscoveryOptions) Validate() error {
	if o.AppID == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "appId is required")
	}
	return nil
}
