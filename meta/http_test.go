package meta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

func newHTTPClient(t *testing.T) *HTTPClient {
	t.Helper()
	tr, err := transport.NewHTTP(&transport.HTTPConfig{ReadTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	c, err := NewHTTP(tr, time.Second)
	require.NoError(t, err)
	return c
}

func TestHTTPClient_GetServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/config", r.URL.Path)
		assert.Equal(t, "demo", r.URL.Query().Get("appId"))
		assert.Equal(t, "10.0.0.1", r.URL.Query().Get("ip"))
		_, _ = w.Write([]byte(`[
			{"appName":"config-service","instanceId":"cs-1","homepageUrl":"http://cs1:8080/"},
			{"appName":"config-service","instanceId":"cs-2","homepageUrl":"http://cs2:8080/"}
		]`))
	}))
	defer srv.Close()

	c := newHTTPClient(t)
	instances, err := c.GetServices(context.Background(), model.Endpoint(srv.URL), model.DiscoveryOptions{AppID: "demo", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "cs-1", instances[0].InstanceID)
	assert.Equal(t, "http://cs2:8080/", instances[1].Address)
}

func TestHTTPClient_EmptyAndNotModified(t *testing.T) {
	var notModified atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if notModified.Load() {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newHTTPClient(t)
	instances, err := c.GetServices(context.Background(), model.Endpoint(srv.URL), model.DiscoveryOptions{AppID: "demo"})
	require.NoError(t, err)
	assert.Empty(t, instances)

	notModified.Store(true)
	instances, err = c.GetServices(context.Background(), model.Endpoint(srv.URL), model.DiscoveryOptions{AppID: "demo"})
	require.NoError(t, err)
	assert.Empty(t, instances)
}

func TestHTTPClient_FailoverAcrossMetaServers(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"appName":"config-service","instanceId":"cs-1","homepageUrl":"http://cs1:8080/"}]`))
	}))
	defer up.Close()

	c := newHTTPClient(t)
	instances, err := c.GetServices(context.Background(), model.Endpoint(down.URL+", "+up.URL), model.DiscoveryOptions{AppID: "demo"})
	require.NoError(t, err)
	require.Len(t, instances, 1)

	_, err = c.GetServices(context.Background(), model.Endpoint(down.URL), model.DiscoveryOptions{AppID: "demo"})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrDiscovery))
	code, ok := xerrors.IsStatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	var de *xerrors.DiscoveryError
	require.True(t, xerrors.As(err, &de))
	assert.True(t, strings.HasPrefix(de.URL, down.URL+"/services/config?"))
}

func TestHTTPClient_TraceURL(t *testing.T) {
	c := newHTTPClient(t)
	url := c.TraceURL("http://meta-a:8080/,http://meta-b:8080", model.DiscoveryOptions{AppID: "demo"})
	assert.Equal(t, "http://meta-a:8080/services/config?appId=demo", url)
}
