package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/xerrors"
)

func TestWatchResponse_NotModifiedInvariant(t *testing.T) {
	nm := WatchNotModified()
	assert.Equal(t, StatusNotModified, nm.Status)
	assert.Empty(t, nm.Notifications)
	require.NoError(t, nm.Validate())

	_, err := WatchOK(nil)
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)

	ok, err := WatchOK([]NotificationResult{{NamespaceName: "app", NotificationID: 6}})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, ok.Status)
	require.NoError(t, ok.Validate())

	bad := &WatchResponse{Status: StatusNotModified, Notifications: []NotificationResult{{NamespaceName: "app"}}}
	assert.Error(t, bad.Validate())
	assert.Error(t, (&WatchResponse{Status: StatusOK}).Validate())
}

func TestGetConfigResponse_NotModifiedInvariant(t *testing.T) {
	nm := GetConfigNotModified()
	assert.Nil(t, nm.Config)
	require.NoError(t, nm.Validate())

	_, err := GetConfigOK(nil)
	require.Error(t, err)

	ok, err := GetConfigOK(NewConfigResult("demo", "default", "app", "r1", map[string]string{"k": "v"}))
	require.NoError(t, err)
	require.NoError(t, ok.Validate())

	assert.Error(t, (&GetConfigResponse{Status: StatusNotModified, Config: ok.Config}).Validate())
}

func TestConfigResult_Immutable(t *testing.T) {
	src := map[string]string{"b": "2", "a": "1"}
	cfg := NewConfigResult("demo", "default", "app", "r1", src)
	src["a"] = "changed"

	v, ok := cfg.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, []string{"a", "b"}, cfg.Keys())

	empty := NewConfigResult("demo", "default", "app", "", nil)
	assert.NotNil(t, empty.Configurations)
}

func TestWatchRequest_Validate(t *testing.T) {
	req := &WatchRequest{
		AppID:         "demo",
		Notifications: []NotificationDefinition{{NamespaceName: "app", NotificationID: InitialNotificationID}},
	}
	require.NoError(t, req.Validate())
	assert.Empty(t, req.Cluster)
	norm := req.Normalized()
	assert.Equal(t, DefaultCluster, norm.Cluster)
	assert.Empty(t, req.Cluster)
	assert.Equal(t, "east", (&WatchRequest{Cluster: "east"}).Normalized().Cluster)

	dup := &WatchRequest{
		AppID: "demo",
		Notifications: []NotificationDefinition{
			{NamespaceName: "app", NotificationID: 1},
			{NamespaceName: "app", NotificationID: 2},
		},
	}
	assert.ErrorIs(t, dup.Validate(), xerrors.ErrInvalidInput)
	assert.Error(t, (&WatchRequest{AppID: "demo"}).Validate())
	assert.Error(t, (&WatchRequest{}).Validate())
}

func TestGetConfigRequest_Validate(t *testing.T) {
	req := &GetConfigRequest{AppID: "demo", Namespace: "app"}
	require.NoError(t, req.Validate())
	assert.Empty(t, req.Cluster)
	assert.Equal(t, DefaultCluster, req.Normalized().Cluster)
	assert.Empty(t, req.Cluster)
	assert.Error(t, (&GetConfigRequest{AppID: "demo"}).Validate())
}

func TestNotificationMessages_Merge(t *testing.T) {
	a := NewNotificationMessages(map[string]int64{"demo+default+app": 5, "demo+default+db": 3})
	b := NewNotificationMessages(map[string]int64{"demo+default+app": 4, "demo+default+mq": 1})

	merged := a.Merge(b)
	assert.Equal(t, map[string]int64{
		"demo+default+app": 5,
		"demo+default+db":  3,
		"demo+default+mq":  1,
	}, merged.Details)

	var nilMsgs *NotificationMessages
	assert.True(t, nilMsgs.IsEmpty())
	assert.Equal(t, b.Details, nilMsgs.Merge(b).Details)
}

func TestEndpoints(t *testing.T) {
	instances := []ServiceInstance{
		{ServiceID: "configservice", InstanceID: "i1", Address: "http://h1:8080/"},
		{ServiceID: "configservice", InstanceID: "i2", Address: "http://h2:8080"},
	}
	eps := Endpoints(instances)
	assert.Equal(t, []Endpoint{"http://h1:8080/", "http://h2:8080"}, eps)
	assert.Equal(t, "http://h1:8080", eps[0].TrimSlash())
	assert.Equal(t, "NOT_MODIFIED", StatusNotModified.String())
}
