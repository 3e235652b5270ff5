// Package protocol 定义配置中心的线上协议：HTTP 路径与查询参数、JSON 报文、
// gRPC 服务描述与编解码器，以及与 model 之间的转换。
package protocol

import (
	"github.com/ceyewan/beacon/model"
)

// ============================================================================
// HTTP / gRPC 共用报文
// ============================================================================

// ServiceDTO 服务发现返回的单个实例
type ServiceDTO struct {
	AppName     string `json:"appName" msgpack:"appName"`
	InstanceID  string `json:"instanceId" msgpack:"instanceId"`
	HomepageURL string `json:"homepageUrl" msgpack:"homepageUrl"`
}

// MessagesDTO 命名空间版本提示
type MessagesDTO struct {
	Details map[string]int64 `json:"details" msgpack:"details"`
}

// NotificationDTO 长轮询通知项
type NotificationDTO struct {
	NamespaceName  string       `json:"namespaceName" msgpack:"namespaceName"`
	NotificationID int64        `json:"notificationId" msgpack:"notificationId"`
	Messages       *MessagesDTO `json:"messages,omitempty" msgpack:"messages,omitempty"`
}

// ConfigDTO 配置快照
type ConfigDTO struct {
	AppID          string            `json:"appId" msgpack:"appId"`
	Cluster        string            `json:"cluster" msgpack:"cluster"`
	NamespaceName  string            `json:"namespaceName" msgpack:"namespaceName"`
	Configurations map[string]string `json:"configurations" msgpack:"configurations"`
	ReleaseKey     string            `json:"releaseKey" msgpack:"releaseKey"`
}

// ============================================================================
// gRPC 请求/响应
// ============================================================================

// DiscoveryRequest MetaService.GetServices 请求
type DiscoveryRequest struct {
	AppID    string `json:"appId" msgpack:"appId"`
	ClientIP string `json:"clientIp,omitempty" msgpack:"clientIp,omitempty"`
}

// DiscoveryResponse MetaService.GetServices 响应
type DiscoveryResponse struct {
	Instances []ServiceDTO `json:"instances" msgpack:"instances"`
}

// WatchNotificationRequest NotificationService.Watch 请求
type WatchNotificationRequest struct {
	AppID         string            `json:"appId" msgpack:"appId"`
	Cluster       string            `json:"cluster" msgpack:"cluster"`
	Notifications []NotificationDTO `json:"notifications" msgpack:"notifications"`
	DataCenter    string            `json:"dataCenter,omitempty" msgpack:"dataCenter,omitempty"`
	ClientIP      string            `json:"clientIp,omitempty" msgpack:"clientIp,omitempty"`
	Label         string            `json:"label,omitempty" msgpack:"label,omitempty"`
}

// WatchNotificationResponse NotificationService.Watch 响应，未变化时服务端不发送消息
type WatchNotificationResponse struct {
	Notifications []NotificationDTO `json:"notifications" msgpack:"notifications"`
}

// GetConfigRequest ConfigService.GetConfig 请求
type GetConfigRequest struct {
	AppID      string       `json:"appId" msgpack:"appId"`
	Cluster    string       `json:"cluster" msgpack:"cluster"`
	Namespace  string       `json:"namespace" msgpack:"namespace"`
	ReleaseKey string       `json:"releaseKey,omitempty" msgpack:"releaseKey,omitempty"`
	DataCenter string       `json:"dataCenter,omitempty" msgpack:"dataCenter,omitempty"`
	ClientIP   string       `json:"clientIp,omitempty" msgpack:"clientIp,omitempty"`
	Label      string       `json:"label,omitempty" msgpack:"label,omitempty"`
	Messages   *MessagesDTO `json:"messages,omitempty" msgpack:"messages,omitempty"`
}

// GetConfigResponse ConfigService.GetConfig 响应，未变化时服务端不发送消息
type GetConfigResponse struct {
	Config *ConfigDTO `json:"config,omitempty" msgpack:"config,omitempty"`
}

// ============================================================================
// 与 model 的转换
// ============================================================================

// ToInstance 转换为服务实例，appName 作为 ServiceID，homepageUrl 作为地址
func (d ServiceDTO) ToInstance() model.ServiceInstance {
	return model.ServiceInstance{
		ServiceID:  d.AppName,
		InstanceID: d.InstanceID,
		Address:    d.HomepageURL,
	}
}

// FromInstance ServiceDTO 的逆转换
func FromInstance(in model.ServiceInstance) ServiceDTO {
	return ServiceDTO{AppName: in.ServiceID, InstanceID: in.InstanceID, HomepageURL: in.Address}
}

// ToInstances 批量转换，保持顺序
func ToInstances(dtos []ServiceDTO) []model.ServiceInstance {
	out := make([]model.ServiceInstance, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.ToInstance())
	}
	return out
}

// FromMessages model -> DTO，空消息返回 nil
func FromMessages(m *model.NotificationMessages) *MessagesDTO {
	if m.IsEmpty() {
		return nil
	}
	details := make(map[string]int64, len(m.Details))
	for k, v := range m.Details {
		details[k] = v
	}
	return &MessagesDTO{Details: details}
}

// ToMessages DTO -> model
func (d *MessagesDTO) ToMessages() *model.NotificationMessages {
	if d == nil || len(d.Details) == 0 {
		return nil
	}
	return model.NewNotificationMessages(d.Details)
}

// FromDefinitions 请求通知项转换
func FromDefinitions(defs []model.NotificationDefinition) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(defs))
	for _, d := range defs {
		out = append(out, NotificationDTO{NamespaceName: d.NamespaceName, NotificationID: d.NotificationID})
	}
	return out
}

// ToResults 响应通知项转换
func ToResults(dtos []NotificationDTO) []model.NotificationResult {
	out := make([]model.NotificationResult, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, model.NotificationResult{
			NamespaceName:  d.NamespaceName,
			NotificationID: d.NotificationID,
			Messages:       d.Messages.ToMessages(),
		})
	}
	return out
}

// FromResults 服务端使用的逆转换
func FromResults(results []model.NotificationResult) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(results))
	for _, r := range results {
		out = append(out, NotificationDTO{
			NamespaceName:  r.NamespaceName,
			NotificationID: r.NotificationID,
			Messages:       FromMessages(r.Messages),
		})
	}
	return out
}

// ToConfigResult DTO -> 不可变快照
func (d *ConfigDTO) ToConfigResult() *model.ConfigResult {
	return model.NewConfigResult(d.AppID, d.Cluster, d.NamespaceName, d.ReleaseKey, d.Configurations)
}

// FromConfigResult 快照 -> DTO
func FromConfigResult(c *model.ConfigResult) *ConfigDTO {
	if c == nil {
		return nil
	}
	configs := make(map[string]string, len(c.Configurations))
	for k, v := range c.Configurations {
		configs[k] = v
	}
	return &ConfigDTO{
		AppID:          c.AppID,
		Cluster:        c.Cluster,
		NamespaceName:  c.NamespaceName,
		Configurations: configs,
		ReleaseKey:     c.ReleaseKey,
	}
}

// NewWatchNotificationRequest 由 model 请求构造 gRPC 请求
func NewWatchNotificationRequest(req *model.WatchRequest) *WatchNotificationRequest {
	return &WatchNotificationRequest{
		AppID:         req.AppID,
		Cluster:       req.Cluster,
		Notifications: FromDefinitions(req.Notifications),
		DataCenter:    req.DataCenter,
		ClientIP:      req.ClientIP,
		Label:         req.Label,
	}
}

// NewGetConfigRequest 由 model 请求构造 gRPC 请求
func NewGetConfigRequest(req *model.GetConfigRequest) *GetConfigRequest {
	return &GetConfigRequest{
		AppID:      req.AppID,
		Cluster:    req.Cluster,
		Namespace:  req.Namespace,
		ReleaseKey: req.ReleaseKey,
		DataCenter: req.DataCenter,
		ClientIP:   req.ClientIP,
		Label:      req.Label,
		Messages:   FromMessages(req.Messages),
	}
}
