package protocol

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/mem"

	"github.com/ceyewan/beacon/model"
)

func TestServicesURL(t *testing.T) {
	u := ServicesURL("http://meta:8080/", model.DiscoveryOptions{AppID: "demo"})
	assert.Equal(t, "http://meta:8080/services/config?appId=demo", u)

	u = ServicesURL("http://meta:8080", model.DiscoveryOptions{AppID: "a b", ClientIP: "10.0.0.1"})
	assert.Equal(t, "http://meta:8080/services/config?appId=a+b&ip=10.0.0.1", u)
}

func TestNotificationsURL(t *testing.T) {
	raw, err := NotificationsURL("http://cs:8080", &model.WatchRequest{
		AppID:         "demo",
		Cluster:       "default",
		Notifications: []model.NotificationDefinition{{NamespaceName: "app", NotificationID: 5}},
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, PathNotifications, u.Path)
	q := u.Query()
	assert.Equal(t, "demo", q.Get(ParamAppID))
	assert.Equal(t, "default", q.Get(ParamCluster))
	assert.JSONEq(t, `[{"namespaceName":"app","notificationId":5}]`, q.Get(ParamNotifications))
	assert.False(t, q.Has(ParamDataCenter))
	assert.False(t, q.Has(ParamIP))
}

func TestConfigURL(t *testing.T) {
	raw, err := ConfigURL("http://cs:8080/", &model.GetConfigRequest{
		AppID:      "demo",
		Cluster:    "default",
		Namespace:  "app/x y",
		ReleaseKey: "r1",
		Label:      "gray",
		Messages:   model.NewNotificationMessages(map[string]int64{"demo+default+app": 6}),
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/configs/demo/default/app%2Fx%20y", u.EscapedPath())
	assert.Equal(t, "r1", u.Query().Get(ParamReleaseKey))
	assert.Equal(t, "gray", u.Query().Get(ParamLabel))
	assert.JSONEq(t, `{"details":{"demo+default+app":6}}`, u.Query().Get(ParamMessages))

	raw, err = ConfigURL("http://cs:8080", &model.GetConfigRequest{AppID: "demo", Cluster: "default", Namespace: "app"})
	require.NoError(t, err)
	assert.Equal(t, "http://cs:8080/configs/demo/default/app", raw)
}

func TestConversions(t *testing.T) {
	instances := ToInstances([]ServiceDTO{{AppName: "configservice", InstanceID: "i1", HomepageURL: "http://h1:8080"}})
	assert.Equal(t, []model.ServiceInstance{{ServiceID: "configservice", InstanceID: "i1", Address: "http://h1:8080"}}, instances)
	assert.Equal(t, "i1", FromInstance(instances[0]).InstanceID)

	results := ToResults([]NotificationDTO{{
		NamespaceName:  "app",
		NotificationID: 6,
		Messages:       &MessagesDTO{Details: map[string]int64{"demo+default+app": 6}},
	}})
	require.Len(t, results, 1)
	assert.Equal(t, int64(6), results[0].Messages.Details["demo+default+app"])
	assert.Nil(t, FromResults([]model.NotificationResult{{NamespaceName: "app"}})[0].Messages)

	dto := &ConfigDTO{AppID: "demo", Cluster: "default", NamespaceName: "app", ReleaseKey: "r1", Configurations: map[string]string{"k": "v"}}
	cfg := dto.ToConfigResult()
	dto.Configurations["k"] = "changed"
	v, _ := cfg.Get("k")
	assert.Equal(t, "v", v)
	assert.Equal(t, "r1", FromConfigResult(cfg).ReleaseKey)
	assert.Nil(t, FromConfigResult(nil))
}

func TestCodecs(t *testing.T) {
	for _, name := range []string{CodecJSON, CodecMsgpack} {
		t.Run(name, func(t *testing.T) {
			codec := encoding.GetCodecV2(name)
			require.NotNil(t, codec)
			assert.True(t, ValidCodec(name))

			in := &WatchNotificationResponse{Notifications: []NotificationDTO{{NamespaceName: "app", NotificationID: 6}}}
			data, err := codec.Marshal(in)
			require.NoError(t, err)

			out := new(WatchNotificationResponse)
			require.NoError(t, codec.Unmarshal(mem.BufferSlice(data), out))
			assert.Equal(t, in.Notifications, out.Notifications)
		})
	}
	assert.False(t, ValidCodec("proto"))
}
