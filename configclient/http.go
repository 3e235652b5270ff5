package configclient

import (
	"context"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

const httpNotFound = "Http status code: 404"

// HTTPClient 基于 HTTP 长轮询的配置服务客户端
type HTTPClient struct {
	base
	transport *transport.HTTPTransport
}

var _ Client = (*HTTPClient)(nil)

// NewHTTP 创建 HTTP 配置服务客户端
func NewHTTP(tr *transport.HTTPTransport, cfg *Config, opts ...Option) (*HTTPClient, error) {
	if tr == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "configclient: http transport is nil")
	}
	return &HTTPClient{base: newBase(cfg, applyOptions(opts)), transport: tr}, nil
}

func (c *HTTPClient) Watch(ctx context.Context, endpoint model.Endpoint, req *model.WatchRequest) (*model.WatchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalized()
	url, err := protocol.NotificationsURL(endpoint, req)
	if err != nil {
		return nil, xerrors.NewTransport(sceneWatch, err)
	}

	var dtos []protocol.NotificationDTO
	st, err := c.execute(ctx, endpoint, func() (any, error) {
		return c.transport.Do(ctx, &transport.HTTPRequest{
			URL:       url,
			Header:    c.sign(req.AppID, url, req.AccessKeySecret),
			Timeout:   c.cfg.WatchTimeout,
			Operation: operationWatch,
		}, &dtos)
	})
	if err != nil {
		c.logger.DebugContext(ctx, "watch failed", clog.String("url", url), clog.Error(err))
		return nil, withScene(sceneWatch, httpNotFound, err)
	}
	return watchResponse(st, protocol.ToResults(dtos))
}

func (c *HTTPClient) Get(ctx context.Context, endpoint model.Endpoint, req *model.GetConfigRequest) (*model.GetConfigResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalized()
	url, err := protocol.ConfigURL(endpoint, req)
	if err != nil {
		return nil, xerrors.NewTransport(sceneGet, err)
	}

	var dto *protocol.ConfigDTO
	st, err := c.execute(ctx, endpoint, func() (any, error) {
		return c.transport.Do(ctx, &transport.HTTPRequest{
			URL:       url,
			Header:    c.sign(req.AppID, url, req.AccessKeySecret),
			Timeout:   c.cfg.GetTimeout,
			Operation: operationGet,
		}, &dto)
	})
	if err != nil {
		c.logger.DebugContext(ctx, "get config failed", clog.String("url", url), clog.Error(err))
		return nil, withScene(sceneGet, httpNotFound, err)
	}

	var cfg *model.ConfigResult
	if dto != nil {
		cfg = dto.ToConfigResult()
	}
	return getConfigResponse(st, cfg)
}
