package model

import (
	"maps"

	"github.com/ceyewan/beacon/xerrors"
)

// NotificationMessages 每个命名空间的新鲜度提示：key -> 版本号
type NotificationMessages struct {
	Details map[string]int64 `json:"details"`
}

// NewNotificationMessages 复制 details 构造消息
func NewNotificationMessages(details map[string]int64) *NotificationMessages {
	return &NotificationMessages{Details: maps.Clone(details)}
}

// IsEmpty 判断是否没有任何提示
func (m *NotificationMessages) IsEmpty() bool {
	return m == nil || len(m.Details) == 0
}

// Merge 返回合并后的新消息，同一个 key 保留较大的版本号
func (m *NotificationMessages) Merge(other *NotificationMessages) *NotificationMessages {
	merged := make(map[string]int64)
	if m != nil {
		maps.Copy(merged, m.Details)
	}
	if other != nil {
		for k, v := range other.Details {
			if cur, ok := merged[k]; !ok || v > cur {
				merged[k] = v
			}
		}
	}
	return &NotificationMessages{Details: merged}
}

// NotificationDefinition 客户端已知的命名空间版本
type NotificationDefinition struct {
	NamespaceName  string `json:"namespaceName"`
	NotificationID int64  `json:"notificationId"`
}

// NotificationResult 服务端当前的命名空间版本
type NotificationResult struct {
	NamespaceName  string                `json:"namespaceName"`
	NotificationID int64                 `json:"notificationId"`
	Messages       *NotificationMessages `json:"messages,omitempty"`
}

// WatchRequest 长轮询请求
type WatchRequest struct {
	AppID           string
	Cluster         string
	Notifications   []NotificationDefinition
	DataCenter      string
	ClientIP        string
	Label           string
	AccessKeySecret string
}

// Validate 校验必填字段，不修改请求
func (r *WatchRequest) Validate() error {
	if r == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "watch request is nil")
	}
	if r.AppID == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "appId is required")
	}
	if len(r.Notifications) == 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "notifications must not be empty")
	}
	seen := make(map[string]struct{}, len(r.Notifications))
	for _, n := range r.Notifications {
		if n.NamespaceName == "" {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "namespaceName is required")
		}
		if _, dup := seen[n.NamespaceName]; dup {
			return xerrors.Wrapf(xerrors.ErrInvalidInput, "duplicate namespace %q", n.NamespaceName)
		}
		seen[n.NamespaceName] = struct{}{}
	}
	return nil
}

// Normalized 返回填充默认集群后的副本，原请求保持不变
func (r *WatchRequest) Normalized() *WatchRequest {
	out := *r
	if out.Cluster == "" {
		out.Cluster = DefaultCluster
	}
	return &out
}

// WatchResponse 长轮询结果
//
// NOT_MODIFIED 当且仅当 Notifications 为空；OK 时至少有一个命名空间发生变化。
type WatchResponse struct {
	Status        Status
	Notifications []NotificationResult
}

// WatchOK 构造 OK 响应，notifications 为空时返回错误
func WatchOK(notifications []NotificationResult) (*WatchResponse, error) {
	if len(notifications) == 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "ok watch response requires notifications")
	}
	return &WatchResponse{Status: StatusOK, Notifications: append([]NotificationResult(nil), notifications...)}, nil
}

// WatchNotModified 构造 NOT_MODIFIED 响应
func WatchNotModified() *WatchResponse {
	return &WatchResponse{Status: StatusNotModified, Notifications: []NotificationResult{}}
}

// Validate 检查状态与载荷是否一致
func (r *WatchResponse) Validate() error {
	switch r.Status {
	case StatusOK:
		if len(r.Notifications) == 0 {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "ok watch response without notifications")
		}
	case StatusNotModified:
		if len(r.Notifications) != 0 {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "not modified watch response with notifications")
		}
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown status %d", r.Status)
	}
	return nil
}
