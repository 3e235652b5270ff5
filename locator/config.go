package locator

import (
	"time"

	"github.com/ceyewan/beacon/xerrors"
)

// Config 服务定位器配置
type Config struct {
	// MetaAddress meta server 地址，逗号分隔多个
	MetaAddress string `json:"meta_address" yaml:"meta_address" mapstructure:"meta_address"`

	AppID    string `json:"app_id" yaml:"app_id" mapstructure:"app_id"`
	ClientIP string `json:"client_ip" yaml:"client_ip" mapstructure:"client_ip"`

	// RefreshInterval 周期刷新间隔（默认：5 分钟）
	RefreshInterval time.Duration `json:"refresh_interval" yaml:"refresh_interval" mapstructure:"refresh_interval"`

	// DiscoveryQPS 服务发现限流，每秒允许的刷新次数（默认：2）
	DiscoveryQPS float64 `json:"discovery_qps" yaml:"discovery_qps" mapstructure:"discovery_qps"`

	// DiscoveryAttempts 单次刷新的尝试次数（默认：2）
	DiscoveryAttempts int `json:"discovery_attempts" yaml:"discovery_attempts" mapstructure:"discovery_attempts"`

	// DiscoveryRetryDelay 两次尝试之间的固定间隔（默认：1 秒）
	DiscoveryRetryDelay time.Duration `json:"discovery_retry_delay" yaml:"discovery_retry_delay" mapstructure:"discovery_retry_delay"`

	// Properties 显式属性，支持 config-service 与已废弃的 configService
	Properties map[string]string `json:"properties" yaml:"properties" mapstructure:"properties"`
}

func (c *Config) setDefaults() {
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 5 * time.Minute
	}
	if c.DiscoveryQPS == 0 {
		c.DiscoveryQPS = 2
	}
	if c.DiscoveryAttempts == 0 {
		c.DiscoveryAttempts = 2
	}
	if c.DiscoveryRetryDelay == 0 {
		c.DiscoveryRetryDelay = time.Second
	}
}

func (c *Config) validate(overridden bool) error {
	if !overridden {
		if c.MetaAddress == "" {
			return xerrors.Wrap(ErrInvalidConfig, "meta_address is required")
		}
		if c.AppID == "" {
			return xerrors.Wrap(ErrInvalidConfig, "app_id is required")
		}
	}
	if c.RefreshInterval <= 0 {
		return xerrors.Wrap(ErrInvalidConfig, "refresh_interval must be positive")
	}
	if c.DiscoveryQPS <= 0 {
		return xerrors.Wrap(ErrInvalidConfig, "discovery_qps must be positive")
	}
	if c.DiscoveryAttempts < 1 {
		return xerrors.Wrap(ErrInvalidConfig, "discovery_attempts must be at least 1")
	}
	if c.DiscoveryRetryDelay < 0 {
		return xerrors.Wrap(ErrInvalidConfig, "discovery_retry_delay must not be negative")
	}
	return nil
}
