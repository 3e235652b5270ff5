package client

import (
	"strings"
	"time"

	"github.com/ceyewan/beacon/breaker"
	"github.com/ceyewan/beacon/configclient"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/locator"
	"github.com/ceyewan/beacon/meta"
	"github.com/ceyewan/beacon/model"
	"github.com/ceyewan/beacon/ratelimit"
	"github.com/ceyewan/beacon/transport"
	"github.com/ceyewan/beacon/xerrors"
)

// DiscoveryType 服务发现方式
type DiscoveryType string

const (
	// DiscoveryMeta 通过 meta server 发现（默认）
	DiscoveryMeta DiscoveryType = "meta"
	// DiscoveryEtcd 直接读取 etcd 注册中心
	DiscoveryEtcd DiscoveryType = "etcd"
)

// Config 客户端配置，CLI 从 beacon 键解析
type Config struct {
	AppID           string `json:"app_id" yaml:"app_id" mapstructure:"app_id"`
	Cluster         string `json:"cluster" yaml:"cluster" mapstructure:"cluster"`
	DataCenter      string `json:"data_center" yaml:"data_center" mapstructure:"data_center"`
	ClientIP        string `json:"client_ip" yaml:"client_ip" mapstructure:"client_ip"`
	Label           string `json:"label" yaml:"label" mapstructure:"label"`
	AccessKeySecret string `json:"access_key_secret" yaml:"access_key_secret" mapstructure:"access_key_secret"`

	// MetaAddress meta server 地址，逗号分隔多个
	MetaAddress string `json:"meta_address" yaml:"meta_address" mapstructure:"meta_address"`

	// Transport 传输方式：http / grpc，为空时按优先级选择
	Transport string `json:"transport" yaml:"transport" mapstructure:"transport"`

	// Discovery 服务发现方式：meta（默认）/ etcd
	Discovery DiscoveryType `json:"discovery" yaml:"discovery" mapstructure:"discovery"`

	// DiscoveryTimeout 单次服务发现请求超时（默认：5 秒）
	DiscoveryTimeout time.Duration `json:"discovery_timeout" yaml:"discovery_timeout" mapstructure:"discovery_timeout"`

	// CacheTTL 本地配置缓存的访问过期时间（默认：30 分钟）
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`
	// CacheCapacity 本地缓存的命名空间上限（默认：1000）
	CacheCapacity int `json:"cache_capacity" yaml:"cache_capacity" mapstructure:"cache_capacity"`

	Locator      locator.Config          `json:"locator" yaml:"locator" mapstructure:"locator"`
	HTTP         transport.HTTPConfig    `json:"http" yaml:"http" mapstructure:"http"`
	Channel      transport.ChannelConfig `json:"channel" yaml:"channel" mapstructure:"channel"`
	ConfigClient configclient.Config     `json:"config_client" yaml:"config_client" mapstructure:"config_client"`

	// Breaker 为空时不启用熔断
	Breaker *breaker.Config `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
	// RateLimit 服务发现限流器，distributed 模式需要配置 Redis
	RateLimit *ratelimit.Config      `json:"ratelimit" yaml:"ratelimit" mapstructure:"ratelimit"`
	Redis     *connector.RedisConfig `json:"redis" yaml:"redis" mapstructure:"redis"`

	// Etcd 与 EtcdDiscovery 仅在 Discovery 为 etcd 时使用
	Etcd          *connector.EtcdConfig `json:"etcd" yaml:"etcd" mapstructure:"etcd"`
	EtcdDiscovery *meta.EtcdConfig      `json:"etcd_discovery" yaml:"etcd_discovery" mapstructure:"etcd_discovery"`
}

func (c *Config) setDefaults() {
	if c.Cluster == "" {
		c.Cluster = model.DefaultCluster
	}
	if c.Discovery == "" {
		c.Discovery = DiscoveryMeta
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = 5 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Minute
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = 1000
	}
	if c.Locator.AppID == "" {
		c.Locator.AppID = c.AppID
	}
	if c.Locator.ClientIP == "" {
		c.Locator.ClientIP = c.ClientIP
	}
	if c.Locator.MetaAddress == "" {
		c.Locator.MetaAddress = c.MetaAddress
	}
	if c.Discovery == DiscoveryEtcd && c.Locator.MetaAddress == "" && c.Etcd != nil {
		c.Locator.MetaAddress = "etcd://" + strings.Join(c.Etcd.Endpoints, ",")
	}
}

func (c *Config) validate() error {
	if c.AppID == "" {
		return xerrors.Wrap(ErrInvalidConfig, "app_id is required")
	}
	switch c.Discovery {
	case DiscoveryMeta:
	case DiscoveryEtcd:
		if c.Etcd == nil {
			return xerrors.Wrap(ErrInvalidConfig, "etcd config is required for etcd discovery")
		}
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unknown discovery %q", c.Discovery)
	}
	if c.RateLimit != nil && c.RateLimit.Driver == ratelimit.DriverDistributed && c.Redis == nil {
		return xerrors.Wrap(ErrInvalidConfig, "redis config is required for distributed rate limit")
	}
	return nil
}
