package testkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/signature"
	"github.com/ceyewan/beacon/trace"
)

// FakeServer 同时扮演 meta server 与配置服务的 HTTP 假服务
type FakeServer struct {
	*Store
	URL string
}

// NewFakeServer 启动 HTTP 假服务，store 为空时新建，生命周期由 t.Cleanup 管理
func NewFakeServer(t *testing.T, store *Store) *FakeServer {
	t.Helper()
	if store == nil {
		store = NewStore()
	}
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(gin.Recovery(), trace.GinMiddleware("beacon-testkit"))

	f := &FakeServer{Store: store}
	r.GET(protocol.PathServices, f.services)
	r.GET(protocol.PathNotifications, f.notifications)
	r.GET(protocol.PathConfigs+"/:appId/:cluster/:namespace", f.configs)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	f.URL = srv.URL
	return f
}

// Endpoint 以 model.Endpoint 形式返回服务地址
func (f *FakeServer) Endpoint() model.Endpoint {
	return model.Endpoint(f.URL)
}

// Instance 指向自身的配置服务实例
func (f *FakeServer) Instance(id string) model.ServiceInstance {
	return model.ServiceInstance{ServiceID: model.ConfigServiceID, InstanceID: id, Address: f.URL + "/"}
}

func (f *FakeServer) services(c *gin.Context) {
	services, ok := f.discover()
	if !ok {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (f *FakeServer) notifications(c *gin.Context) {
	f.recordAuth(c.GetHeader(signature.HeaderAuthorization))

	var defs []protocol.NotificationDTO
	if err := json.Unmarshal([]byte(c.Query(protocol.ParamNotifications)), &defs); err != nil || len(defs) == 0 {
		c.Status(http.StatusBadRequest)
		return
	}
	changes := f.waitChanges(c.Request.Context(), c.Query(protocol.ParamAppID), c.DefaultQuery(protocol.ParamCluster, model.DefaultCluster), defs)
	if len(changes) == 0 {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, changes)
}

func (f *FakeServer) configs(c *gin.Context) {
	f.recordAuth(c.GetHeader(signature.HeaderAuthorization))

	dto, found := f.config(c.Param("appId"), c.Param("cluster"), c.Param("namespace"), c.Query(protocol.ParamReleaseKey))
	switch {
	case !found:
		c.Status(http.StatusNotFound)
	case dto == nil:
		c.Status(http.StatusNotModified)
	default:
		c.JSON(http.StatusOK, dto)
	}
}
