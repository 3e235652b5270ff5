package client

import (
	"slices"
	"sync"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/configclient"
	"github.com/ceyewan/beacon/meta"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

// Stack 一种传输方式构建出的服务发现与配置客户端
type Stack struct {
	Meta   meta.Client
	Config configclient.Client
	// Evict 服务列表变化后清理过期连接，可为空
	Evict func(active []model.Endpoint)
	// Close 释放传输资源
	Close func() error
}

// Deps 构建传输栈所需的公共依赖
type Deps struct {
	Logger           clog.Logger
	Meter            metrics.Meter
	TransportOptions []transport.Option
	ConfigOptions    []configclient.Option
}

// TransportFactory 传输方式工厂，Priority 越小越优先
type TransportFactory struct {
	Name     string
	Priority int
	Build    func(cfg *Config, deps *Deps) (*Stack, error)
}

var (
	registryMu sync.RWMutex
	registry   []TransportFactory
)

func init() {
	RegisterTransport(TransportFactory{Name: TransportHTTP, Priority: 0, Build: buildHTTP})
	RegisterTransport(TransportFactory{Name: TransportGRPC, Priority: 10, Build: buildGRPC})
}

// RegisterTransport 注册传输方式，同名覆盖
func RegisterTransport(f TransportFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry = slices.DeleteFunc(registry, func(e TransportFactory) bool { return e.Name == f.Name })
	registry = append(registry, f)
	slices.SortStableFunc(registry, func(a, b TransportFactory) int { return a.Priority - b.Priority })
}

// Transports 按优先级返回已注册的传输方式名称
func Transports() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for _, f := range registry {
		names = append(names, f.Name)
	}
	return names
}

// lookupTransport name 为空时返回优先级最高的传输方式
func lookupTransport(name string) (TransportFactory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, f := range registry {
		if name == "" || f.Name == name {
			return f, nil
		}
	}
	return TransportFactory{}, xerrors.Wrapf(ErrUnknownTransport, "%q", name)
}

func buildHTTP(cfg *Config, deps *Deps) (*Stack, error) {
	tr, err := transport.NewHTTP(&cfg.HTTP, deps.TransportOptions...)
	if err != nil {
		return nil, err
	}
	metaClient, err := meta.NewHTTP(tr, cfg.DiscoveryTimeout, meta.WithLogger(deps.Logger))
	if err != nil {
		return nil, err
	}
	configs, err := configclient.NewHTTP(tr, &cfg.ConfigClient, deps.ConfigOptions...)
	if err != nil {
		return nil, err
	}
	return &Stack{
		Meta:   metaClient,
		Config: configs,
		Close: func() error {
			tr.Close()
			return nil
		},
	}, nil
}

// buildGRPC meta 与配置服务使用各自的连接管理器，清理配置服务连接不会影响 meta 连接
func buildGRPC(cfg *Config, deps *Deps) (*Stack, error) {
	metaChannels := transport.NewChannelManager(&cfg.Channel, deps.TransportOptions...)
	configChannels := transport.NewChannelManager(&cfg.Channel, deps.TransportOptions...)
	closeAll := func() error {
		var errs xerrors.Collector
		errs.Collect(configChannels.Close())
		errs.Collect(metaChannels.Close())
		return errs.Err()
	}

	metaClient, err := meta.NewGRPC(metaChannels, &meta.GRPCConfig{Codec: cfg.ConfigClient.Codec, Timeout: cfg.DiscoveryTimeout},
		meta.WithLogger(deps.Logger), meta.WithMeter(deps.Meter))
	if err != nil {
		_ = closeAll()
		return nil, err
	}
	configs, err := configclient.NewGRPC(configChannels, &cfg.ConfigClient, deps.ConfigOptions...)
	if err != nil {
		_ = closeAll()
		return nil, err
	}
	return &Stack{
		Meta:   metaClient,
		Config: configs,
		Evict: func(active []model.Endpoint) {
			configChannels.Evict(active)
		},
		Close: closeAll,
	}, nil
}
