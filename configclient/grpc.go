package configclient

import (
	"context"
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

const grpcNotFound = "Grpc status: NotFound"

// GRPCClient 基于 gRPC 服务端流的配置服务客户端
type GRPCClient struct {
	base
	channels *transport.ChannelManager
	metrics  *metrics.ClientMetrics
}

var _ Client = (*GRPCClient)(nil)

// NewGRPC 创建 gRPC 配置服务客户端
func NewGRPC(channels *transport.ChannelManager, cfg *Config, opts ...Option) (*GRPCClient, error) {
	if channels == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "configclient: channel manager is nil")
	}
	o := applyOptions(opts)
	b := newBase(cfg, o)
	if b.cfg.Codec != "" && !protocol.ValidCodec(b.cfg.Codec) {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "configclient: unknown codec %q", b.cfg.Codec)
	}
	cm, err := metrics.NewClientMetrics(o.meter, metrics.TransportGRPC)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{base: b, channels: channels, metrics: cm}, nil
}

func (c *GRPCClient) Watch(ctx context.Context, endpoint model.Endpoint, req *model.WatchRequest) (*model.WatchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalized()
	cc, err := c.channels.GetChannel(endpoint)
	if err != nil {
		return nil, xerrors.NewTransport(sceneWatch, err)
	}

	// 签名内容与 HTTP 请求的 path+query 一致，服务端可共用校验逻辑
	signed, err := protocol.NotificationsURL("", req)
	if err != nil {
		return nil, xerrors.NewTransport(sceneWatch, err)
	}

	resp := new(protocol.WatchNotificationResponse)
	st, err := c.execute(ctx, endpoint, func() (any, error) {
		return transport.Invoke(ctx, cc, protocol.WatchStreamDesc, protocol.MethodWatch,
			protocol.NewWatchNotificationRequest(req), resp, c.callOptions(operationWatch, c.cfg.WatchTimeout, c.sign(req.AppID, signed, req.AccessKeySecret)))
	})
	if err != nil {
		c.logger.DebugContext(ctx, "watch failed", clog.String("endpoint", endpoint.String()), clog.Error(err))
		return nil, withScene(sceneWatch, grpcNotFound, err)
	}
	return watchResponse(st, protocol.ToResults(resp.Notifications))
}

func (c *GRPCClient) Get(ctx context.Context, endpoint model.Endpoint, req *model.GetConfigRequest) (*model.GetConfigResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.Normalized()
	cc, err := c.channels.GetChannel(endpoint)
	if err != nil {
		return nil, xerrors.NewTransport(sceneGet, err)
	}
	signed, err := protocol.ConfigURL("", req)
	if err != nil {
		return nil, xerrors.NewTransport(sceneGet, err)
	}

	resp := new(protocol.GetConfigResponse)
	st, err := c.execute(ctx, endpoint, func() (any, error) {
		return transport.Invoke(ctx, cc, protocol.GetConfigStreamDesc, protocol.MethodGetConfig,
			protocol.NewGetConfigRequest(req), resp, c.callOptions(operationGet, c.cfg.GetTimeout, c.sign(req.AppID, signed, req.AccessKeySecret)))
	})
	if err != nil {
		c.logger.DebugContext(ctx, "get config failed", clog.String("endpoint", endpoint.String()), clog.Error(err))
		return nil, withScene(sceneGet, grpcNotFound, err)
	}

	var cfg *model.ConfigResult
	if resp.Config != nil {
		cfg = resp.Config.ToConfigResult()
	}
	return getConfigResponse(st, cfg)
}

func (c *GRPCClient) callOptions(op string, timeout time.Duration, md map[string]string) transport.CallOptions {
	return transport.CallOptions{
		Codec:     c.cfg.Codec,
		Metadata:  md,
		Timeout:   timeout,
		Operation: op,
		Metrics:   c.metrics,
	}
}
