package transport

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/trace"
	"github.com/ceyewan/beacon/xerrors"
)

// ChannelFactory 根据规范化后的目标创建连接
type ChannelFactory func(target string) (*grpc.ClientConn, error)

// ChannelConfig gRPC 连接配置
type ChannelConfig struct {
	// DefaultPort 多地址目标中缺省端口时使用（默认 8080）
	DefaultPort int `json:"default_port" yaml:"default_port" mapstructure:"default_port"`

	KeepAliveTime    time.Duration `json:"keep_alive_time" yaml:"keep_alive_time" mapstructure:"keep_alive_time"`
	KeepAliveTimeout time.Duration `json:"keep_alive_timeout" yaml:"keep_alive_timeout" mapstructure:"keep_alive_timeout"`
}

func (c *ChannelConfig) setDefaults() {
	if c.DefaultPort <= 0 {
		c.DefaultPort = 8080
	}
	if c.KeepAliveTime <= 0 {
		c.KeepAliveTime = 30 * time.Second
	}
	if c.KeepAliveTimeout <= 0 {
		c.KeepAliveTimeout = 5 * time.Second
	}
}

// ChannelManager 按地址缓存 gRPC 连接。
//
// 创建与淘汰共用一把锁：同一地址不会建出两条连接，已开始关闭的连接也不会再被返回。
type ChannelManager struct {
	mu       sync.Mutex
	channels map[string]*grpc.ClientConn
	closed   bool

	cfg     *ChannelConfig
	factory ChannelFactory
	logger  clog.Logger
}

// NewChannelManager 创建连接管理器
func NewChannelManager(cfg *ChannelConfig, opts ...Option) *ChannelManager {
	if cfg == nil {
		cfg = &ChannelConfig{}
	}
	cfg.setDefaults()
	o := applyOptions(opts)

	m := &ChannelManager{
		channels: make(map[string]*grpc.ClientConn),
		cfg:      cfg,
		factory:  o.factory,
		logger:   o.logger,
	}
	if m.factory == nil {
		m.factory = defaultFactory(cfg, o.creds, o.logger)
	}
	return m
}

func defaultFactory(cfg *ChannelConfig, creds credentials.TransportCredentials, logger clog.Logger) ChannelFactory {
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	builder := NewMultiResolverBuilder(cfg.DefaultPort, logger)
	return func(target string) (*grpc.ClientConn, error) {
		return grpc.NewClient(target,
			grpc.WithTransportCredentials(creds),
			grpc.WithResolvers(builder),
			grpc.WithStatsHandler(trace.GRPCClientStatsHandler()),
			grpc.WithDefaultServiceConfig(`{"loadBalancingConfig":[{"round_robin":{}}]}`),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                cfg.KeepAliveTime,
				Timeout:             cfg.KeepAliveTimeout,
				PermitWithoutStream: true,
			}),
		)
	}
}

// GetChannel 获取或创建 endpoint 对应的连接
func (m *ChannelManager) GetChannel(endpoint model.Endpoint) (*grpc.ClientConn, error) {
	target, err := Target(endpoint)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if cc, ok := m.channels[target]; ok {
		return cc, nil
	}

	cc, err := m.factory(target)
	if err != nil {
		return nil, xerrors.NewTransport("create grpc channel for "+target, err)
	}
	m.channels[target] = cc
	m.logger.Info("grpc channel created", clog.String("target", target))
	return cc, nil
}

// Evict 关闭并移除不在 active 中的连接，返回被淘汰的数量
func (m *ChannelManager) Evict(active []model.Endpoint) int {
	keep := make(map[string]struct{}, len(active))
	for _, ep := range active {
		if target, err := Target(ep); err == nil {
			keep[target] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for target, cc := range m.channels {
		if _, ok := keep[target]; ok {
			continue
		}
		delete(m.channels, target)
		if err := cc.Close(); err != nil {
			m.logger.Warn("close evicted grpc channel failed", clog.String("target", target), clog.Error(err))
		}
		evicted++
	}
	if evicted > 0 {
		m.logger.Info("grpc channels evicted", clog.Int("count", evicted), clog.Int("remaining", len(m.channels)))
	}
	return evicted
}

// Len 当前缓存的连接数
func (m *ChannelManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

// Close 关闭全部连接，之后 GetChannel 返回 ErrManagerClosed
func (m *ChannelManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs xerrors.Collector
	for target, cc := range m.channels {
		errs.Collect(cc.Close())
		delete(m.channels, target)
	}
	return errs.Err()
}

// Target 把 endpoint 规范化为 gRPC 目标：
//   - 显式的 scheme:/// 目标原样返回
//   - http(s)://host:port/path 取 host:port
//   - 单个地址或逗号列表统一转为 multi:///a:1,b，由多地址解析器补全默认端口
func Target(endpoint model.Endpoint) (string, error) {
	raw := strings.TrimSpace(string(endpoint))
	if raw == "" {
		return "", ErrInvalidEndpoint
	}
	if strings.Contains(raw, ":///") {
		return raw, nil
	}

	var hosts []string
	for _, part := range strings.Split(raw, ",") {
		host, err := hostPort(strings.TrimSpace(part))
		if err != nil {
			return "", err
		}
		if host != "" {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) == 0 {
		return "", ErrInvalidEndpoint
	}
	return SchemeMulti + ":///" + strings.Join(hosts, ","), nil
}

func hostPort(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	if !strings.Contains(raw, "://") {
		return strings.TrimRight(raw, "/"), nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", xerrors.Wrapf(ErrInvalidEndpoint, "%q", raw)
	}
	return u.Host, nil
}
