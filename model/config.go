package model

import (
	"maps"
	"slices"

	"github.com/ceyewan/beacon/xerrors"
)

// ConfigResult 一个命名空间的配置快照，构造后不可变
type ConfigResult struct {
	AppID          string            `json:"appId"`
	Cluster        string            `json:"cluster"`
	NamespaceName  string            `json:"namespaceName"`
	ReleaseKey     string            `json:"releaseKey"`
	Configurations map[string]string `json:"configurations"`
}

// NewConfigResult 复制 configurations 构造快照
func NewConfigResult(appID, cluster, namespace, releaseKey string, configurations map[string]string) *ConfigResult {
	c := maps.Clone(configurations)
	if c == nil {
		c = map[string]string{}
	}
	return &ConfigResult{
		AppID:          appID,
		Cluster:        cluster,
		NamespaceName:  namespace,
		ReleaseKey:     releaseKey,
		Configurations: c,
	}
}

// Get 读取单个配置项
func (c *ConfigResult) Get(key string) (string, bool) {
	v, ok := c.Configurations[key]
	return v, ok
}

// Keys 返回排序后的配置键
func (c *ConfigResult) Keys() []string {
	return slices.Sorted(maps.Keys(c.Configurations))
}

// GetConfigRequest 获取配置请求
type GetConfigRequest struct {
	AppID           string
	Cluster         string
	Namespace       string
	ReleaseKey      string
	DataCenter      string
	ClientIP        string
	Label           string
	Messages        *NotificationMessages
	AccessKeySecret string
}

// Validate 校验必填字段，不修改请求
func (r *GetConfigRequest) Validate() error {
	if r == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "get config request is nil")
	}
	if r.AppID == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "appId is required")
	}
	if r.Namespace == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "namespace is required")
	}
	return nil
}

// Normalized 返回填充默认集群后的副本，原请求保持不变
func (r *GetConfigRequest) Normalized() *GetConfigRequest {
	out := *r
	if out.Cluster == "" {
		out.Cluster = DefaultCluster
	}
	return &out
}

// GetConfigResponse 获取配置结果
//
// OK 时 Config 必然存在；NOT_MODIFIED 当且仅当 Config 为空。
type GetConfigResponse struct {
	Status Status
	Config *ConfigResult
}

// GetConfigOK 构造 OK 响应
func GetConfigOK(cfg *ConfigResult) (*GetConfigResponse, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "ok get config response requires config")
	}
	return &GetConfigResponse{Status: StatusOK, Config: cfg}, nil
}

// GetConfigNotModified 构造 NOT_MODIFIED 响应
func GetConfigNotModified() *GetConfigResponse {
	return &GetConfigResponse{Status: StatusNotModified}
}

// Validate 检查状态与载荷是否一致
func (r *GetConfigResponse) Validate() error {
	switch r.Status {
	case StatusOK:
		if r.Config == nil {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "ok get config response without config")
		}
	case StatusNotModified:
		if r.Config != nil {
			return xerrors.Wrap(xerrors.ErrInvalidInput, "not modified get config response with config")
		}
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown status %d", r.Status)
	}
	return nil
}
