package protocol

import (
	"encoding/json"
	"net/url"

	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/xerrors"
)

// HTTP 路径，大小写敏感
const (
	PathServices      = "/services/config"
	PathNotifications = "/notifications/v2"
	PathConfigs       = "/configs"
)

// 查询参数名
const (
	ParamAppID         = "appId"
	ParamIP            = "ip"
	ParamCluster       = "cluster"
	ParamNotifications = "notifications"
	ParamDataCenter    = "dataCenter"
	ParamLabel         = "label"
	ParamReleaseKey    = "releaseKey"
	ParamMessages      = "messages"
)

// ServicesURL 构造服务发现地址：{meta}/services/config?appId=..&ip=..
func ServicesURL(meta model.Endpoint, opts model.DiscoveryOptions) string {
	q := url.Values{}
	q.Set(ParamAppID, opts.AppID)
	setIfPresent(q, ParamIP, opts.ClientIP)
	return meta.TrimSlash() + PathServices + "?" + q.Encode()
}

// NotificationsURL 构造长轮询地址：{cs}/notifications/v2?appId=..&cluster=..&notifications=<json>
func NotificationsURL(cs model.Endpoint, req *model.WatchRequest) (string, error) {
	notifications, err := json.Marshal(FromDefinitions(req.Notifications))
	if err != nil {
		return "", xerrors.Wrap(err, "encode notifications")
	}

	q := url.Values{}
	q.Set(ParamAppID, req.AppID)
	q.Set(ParamCluster, req.Cluster)
	q.Set(ParamNotifications, string(notifications))
	setIfPresent(q, ParamDataCenter, req.DataCenter)
	setIfPresent(q, ParamIP, req.ClientIP)
	setIfPresent(q, ParamLabel, req.Label)
	return cs.TrimSlash() + PathNotifications + "?" + q.Encode(), nil
}

// ConfigURL 构造配置获取地址：{cs}/configs/{appId}/{cluster}/{namespace}?releaseKey=..
func ConfigURL(cs model.Endpoint, req *model.GetConfigRequest) (string, error) {
	q := url.Values{}
	setIfPresent(q, ParamReleaseKey, req.ReleaseKey)
	setIfPresent(q, ParamDataCenter, req.DataCenter)
	setIfPresent(q, ParamIP, req.ClientIP)
	setIfPresent(q, ParamLabel, req.Label)
	if msgs := FromMessages(req.Messages); msgs != nil {
		b, err := json.Marshal(msgs)
		if err != nil {
			return "", xerrors.Wrap(err, "encode messages")
		}
		q.Set(ParamMessages, string(b))
	}

	u := cs.TrimSlash() + ConfigPath(req.AppID, req.Cluster, req.Namespace)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}

// ConfigPath 路径段使用 path 编码
func ConfigPath(appID, cluster, namespace string) string {
	return PathConfigs + "/" + url.PathEscape(appID) + "/" + url.PathEscape(cluster) + "/" + url.PathEscape(namespace)
}

func setIfPresent(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
