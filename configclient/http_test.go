package configclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/signature"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

var fixedNow = time.UnixMilli(1700000000000)

func newHTTPClient(t *testing.T, opts ...Option) *HTTPClient {
	t.Helper()
	tr, err := transport.NewHTTP(&transport.HTTPConfig{ReadTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	c, err := NewHTTP(tr, &Config{WatchTimeout: 2 * time.Second, GetTimeout: time.Second}, append(opts, WithClock(func() time.Time { return fixedNow }))...)
	require.NoError(t, err)
	return c
}

func watchRequest(ns string) *model.WatchRequest {
	return &model.WatchRequest{
		AppID:         "demo",
		Notifications: []model.NotificationDefinition{{NamespaceName: ns, NotificationID: model.InitialNotificationID}},
	}
}

func TestHTTPClient_Watch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, protocol.PathNotifications, r.URL.Path)
		assert.Equal(t, "default", r.URL.Query().Get("cluster"))

		var defs []protocol.NotificationDTO
		if !assert.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("notifications")), &defs)) || len(defs) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch defs[0].NamespaceName {
		case "changed":
			_, _ = w.Write([]byte(`[{"namespaceName":"changed","notificationId":7,"messages":{"details":{"demo+default+changed":7}}}]`))
		case "empty":
			_, _ = w.Write([]byte(`[]`))
		case "missing":
			http.NotFound(w, r)
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotModified)
		}
	}))
	defer srv.Close()

	c := newHTTPClient(t)
	ctx := context.Background()
	ep := model.Endpoint(srv.URL + "/")

	resp, err := c.Watch(ctx, ep, watchRequest("changed"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, resp.Status)
	require.Len(t, resp.Notifications, 1)
	assert.EqualValues(t, 7, resp.Notifications[0].NotificationID)
	assert.EqualValues(t, 7, resp.Notifications[0].Messages.Details["demo+default+changed"])

	resp, err = c.Watch(ctx, ep, watchRequest("app"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotModified, resp.Status)
	assert.Empty(t, resp.Notifications)

	// 空通知列表等价于 NOT_MODIFIED
	resp, err = c.Watch(ctx, ep, watchRequest("empty"))
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotModified, resp.Status)
	assert.Empty(t, resp.Notifications)

	_, err = c.Watch(ctx, ep, watchRequest("missing"))
	require.Error(t, err)
	assert.True(t, xerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Watch notifications failed. Http status code: 404")

	_, err = c.Watch(ctx, ep, watchRequest("broken"))
	require.Error(t, err)
	assert.Equal(t, "Watch notifications failed. Http status code: 500", err.Error())

	_, err = c.Watch(ctx, ep, &model.WatchRequest{AppID: "demo"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestHTTPClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("releaseKey") == "r2" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if r.URL.Path == "/configs/demo/default/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "/configs/demo/default/app.yaml", r.URL.Path)
		assert.JSONEq(t, `{"details":{"demo+default+app.yaml":3}}`, r.URL.Query().Get("messages"))
		_, _ = w.Write([]byte(`{"appId":"demo","cluster":"default","namespaceName":"app.yaml","releaseKey":"r2","configurations":{"timeout":"30"}}`))
	}))
	defer srv.Close()

	c := newHTTPClient(t)
	ctx := context.Background()

	req := &model.GetConfigRequest{
		AppID:      "demo",
		Namespace:  "app.yaml",
		ReleaseKey: "r1",
		Messages:   model.NewNotificationMessages(map[string]int64{"demo+default+app.yaml": 3}),
	}
	resp, err := c.Get(ctx, model.Endpoint(srv.URL), req)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, resp.Status)
	assert.Equal(t, "r2", resp.Config.ReleaseKey)
	// 默认集群只作用于发出的请求
	assert.Empty(t, req.Cluster)
	v, ok := resp.Config.Get("timeout")
	assert.True(t, ok)
	assert.Equal(t, "30", v)

	resp, err = c.Get(ctx, model.Endpoint(srv.URL), &model.GetConfigRequest{AppID: "demo", Namespace: "app.yaml", ReleaseKey: "r2"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotModified, resp.Status)
	assert.Nil(t, resp.Config)

	_, err = c.Get(ctx, model.Endpoint(srv.URL), &model.GetConfigRequest{AppID: "demo", Namespace: "missing"})
	require.Error(t, err)
	assert.True(t, xerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Get config failed. Http status code: 404")
}

func TestHTTPClient_Signature(t *testing.T) {
	var auth, ts, signed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get(signature.HeaderAuthorization)
		ts = r.Header.Get(signature.HeaderTimestamp)
		signed = r.URL.RequestURI()
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c := newHTTPClient(t)
	req := watchRequest("app")
	req.AccessKeySecret = "secret"
	_, err := c.Watch(context.Background(), model.Endpoint(srv.URL), req)
	require.NoError(t, err)

	assert.Equal(t, "1700000000000", ts)
	assert.Equal(t, "Apollo demo:"+signature.Sign(fixedNow.UnixMilli(), signed, "secret"), auth)

	_, err = c.Watch(context.Background(), model.Endpoint(srv.URL), watchRequest("app"))
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestHTTPClient_Cancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()
	defer close(release)

	c := newHTTPClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.Watch(ctx, model.Endpoint(srv.URL), watchRequest("app"))
	require.Error(t, err)
	assert.True(t, xerrors.IsTransport(err))
	assert.Less(t, time.Since(start), time.Second)
}
