package meta

import (
	"context"
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

const operationDiscovery = "discovery"

// HTTPClient 基于 HTTP 的服务发现
type HTTPClient struct {
	transport *transport.HTTPTransport
	timeout   time.Duration
	logger    clog.Logger
}

// NewHTTP 创建 HTTP 服务发现客户端，timeout 为单次发现请求的读超时
func NewHTTP(tr *transport.HTTPTransport, timeout time.Duration, opts ...Option) (*HTTPClient, error) {
	if tr == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "meta: http transport is nil")
	}
	o := applyOptions(opts)
	return &HTTPClient{transport: tr, timeout: timeout, logger: o.logger}, nil
}

func (c *HTTPClient) GetServices(ctx context.Context, endpoint model.Endpoint, opts model.DiscoveryOptions) ([]model.ServiceInstance, error) {
	metas := splitMeta(endpoint)
	if len(metas) == 0 {
		return nil, &xerrors.DiscoveryError{URL: string(endpoint), Cause: xerrors.Wrap(xerrors.ErrInvalidInput, "empty meta endpoint")}
	}

	var lastErr error
	for _, meta := range metas {
		url := protocol.ServicesURL(meta, opts)

		var dtos []protocol.ServiceDTO
		_, err := c.transport.Do(ctx, &transport.HTTPRequest{
			URL:       url,
			Timeout:   c.timeout,
			Operation: operationDiscovery,
		}, &dtos)
		if err == nil {
			return protocol.ToInstances(dtos), nil
		}

		lastErr = &xerrors.DiscoveryError{URL: url, Cause: err}
		c.logger.WarnContext(ctx, "meta server request failed", clog.String("url", url), clog.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *HTTPClient) TraceURL(endpoint model.Endpoint, opts model.DiscoveryOptions) string {
	metas := splitMeta(endpoint)
	if len(metas) == 0 {
		return protocol.ServicesURL(endpoint, opts)
	}
	return protocol.ServicesURL(metas[0], opts)
}
