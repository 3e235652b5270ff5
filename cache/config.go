package cache

import (
	"time"

	"github.com/ceyewan/beacon/xerrors"
)

// Config 本地缓存配置
type Config struct {
	// Capacity 缓存最大条目数（默认：1000）
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`

	// TTL 访问过期时间，每次读取都会重新计时（默认：30 分钟）
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

func (c *Config) setDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.TTL < time.Millisecond {
		return xerrors.Wrapf(ErrInvalidConfig, "ttl %s is too small", c.TTL)
	}
	return nil
}
