package meta

import (
	"context"
	"net/url"
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/protocol"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

// GRPCClient 基于 gRPC 的服务发现
type GRPCClient struct {
	channels *transport.ChannelManager
	codec    string
	timeout  time.Duration
	metrics  *metrics.ClientMetrics
	logger   clog.Logger
}

// GRPCConfig gRPC 服务发现配置
type GRPCConfig struct {
	Codec   string        // 默认 json
	Timeout time.Duration // 单次发现请求超时
}

// NewGRPC 创建 gRPC 服务发现客户端，channels 只用于 meta 地址，不要与配置服务共用
func NewGRPC(channels *transport.ChannelManager, cfg *GRPCConfig, opts ...Option) (*GRPCClient, error) {
	if channels == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "meta: channel manager is nil")
	}
	if cfg == nil {
		cfg = &GRPCConfig{}
	}
	o := applyOptions(opts)
	cm, err := metrics.NewClientMetrics(o.meter, metrics.TransportGRPC)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{
		channels: channels,
		codec:    cfg.Codec,
		timeout:  cfg.Timeout,
		metrics:  cm,
		logger:   o.logger,
	}, nil
}

func (c *GRPCClient) GetServices(ctx context.Context, endpoint model.Endpoint, opts model.DiscoveryOptions) ([]model.ServiceInstance, error) {
	trace := c.TraceURL(endpoint, opts)

	cc, err := c.channels.GetChannel(endpoint)
	if err != nil {
		return nil, &xerrors.DiscoveryError{URL: trace, Cause: err}
	}

	resp := new(protocol.DiscoveryResponse)
	st, err := transport.Invoke(ctx, cc, protocol.GetServicesStreamDesc, protocol.MethodGetServices,
		&protocol.DiscoveryRequest{AppID: opts.AppID, ClientIP: opts.ClientIP}, resp,
		transport.CallOptions{
			Codec:     c.codec,
			Timeout:   c.timeout,
			Operation: operationDiscovery,
			Metrics:   c.metrics,
		})
	if err != nil {
		c.logger.WarnContext(ctx, "meta service call failed", clog.String("target", trace), clog.Error(err))
		return nil, &xerrors.DiscoveryError{URL: trace, Cause: err}
	}
	if st == model.StatusNotModified {
		return []model.ServiceInstance{}, nil
	}
	return protocol.ToInstances(resp.Instances), nil
}

// TraceURL 形如 multi:///meta:8080/beacon.MetaService/GetServices?appId=demo
func (c *GRPCClient) TraceURL(endpoint model.Endpoint, opts model.DiscoveryOptions) string {
	target, err := transport.Target(endpoint)
	if err != nil {
		target = string(endpoint)
	}
	q := url.Values{}
	q.Set(protocol.ParamAppID, opts.AppID)
	if opts.ClientIP != "" {
		q.Set(protocol.ParamIP, opts.ClientIP)
	}
	return target + protocol.MethodGetServices + "?" + q.Encode()
}
