// Package ratelimit 提供令牌桶限流器，支持单机和分布式两种模式。
//
// 服务定位器使用它限制服务发现的频率：单机模式基于 golang.org/x/time/rate，
// 每个进程独立计数；分布式模式基于 Redis + Lua，同一 appId 的所有客户端实例
// 共享一份服务发现配额。
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{Driver: ratelimit.DriverStandalone}, ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	allowed, _ := limiter.Allow(ctx, "discovery:demo", ratelimit.Limit{Rate: 0.2, Burst: 1})
//
// 分布式模式：
//
//	redisConn, _ := connector.NewRedis(&cfg.Redis, connector.WithLogger(logger))
//	limiter, _ := ratelimit.New(&ratelimit.Config{
//	    Driver:      ratelimit.DriverDistributed,
//	    Distributed: &ratelimit.DistributedConfig{Prefix: "beacon:ratelimit:"},
//	}, ratelimit.WithRedisConnector(redisConn))
package ratelimit

import (
	"context"
	"time"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/xerrors"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Limit 定义限流规则（令牌桶算法）
type Limit struct {
	Rate  float64 // 每秒生成的令牌数
	Burst int     // 桶容量
}

// Limiter 限流器核心接口
type Limiter interface {
	// Allow 尝试获取 1 个令牌（非阻塞）
	// 返回: allowed（是否允许）, error（系统错误，如 Redis 不可用）
	Allow(ctx context.Context, key string, limit Limit) (bool, error)

	// AllowN 尝试获取 N 个令牌（非阻塞）
	AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error)

	// Wait 阻塞直到获取 1 个令牌，分布式模式返回 ErrNotSupported
	Wait(ctx context.Context, key string, limit Limit) error

	// Close 释放后台资源
	Close() error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// DriverType 限流器驱动
type DriverType string

const (
	DriverStandalone  DriverType = "standalone"
	DriverDistributed DriverType = "distributed"
)

// Config 限流组件配置
type Config struct {
	// Driver 驱动类型，默认 standalone
	Driver DriverType `json:"driver" yaml:"driver" mapstructure:"driver"`

	Standalone  *StandaloneConfig  `json:"standalone" yaml:"standalone" mapstructure:"standalone"`
	Distributed *DistributedConfig `json:"distributed" yaml:"distributed" mapstructure:"distributed"`
}

// StandaloneConfig 单机限流配置
type StandaloneConfig struct {
	// CleanupInterval 清理空闲限流器的间隔（默认：1 分钟）
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`

	// IdleTimeout 限流器空闲超时时间（默认：5 分钟）
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

func (c *StandaloneConfig) setDefaults() {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// DistributedConfig 分布式限流配置
type DistributedConfig struct {
	// Prefix Redis Key 前缀（默认："beacon:ratelimit:"）
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
}

func (c *DistributedConfig) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "beacon:ratelimit:"
	}
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 根据 Driver 创建限流器，cfg 为 nil 时创建单机限流器
func New(cfg *Config, opts ...Option) (Limiter, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	o := applyOptions(opts)

	switch cfg.Driver {
	case "", DriverStandalone:
		return newStandalone(cfg.Standalone, o.logger, o.meter)
	case DriverDistributed:
		if o.redisConn == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
		}
		return newDistributed(cfg.Distributed, o.redisConn, o.logger, o.meter)
	default:
		return nil, xerrors.Wrapf(ErrConfigNil, "unknown driver %q", cfg.Driver)
	}
}

// NewStandalone 创建单机限流器
func NewStandalone(cfg *StandaloneConfig, opts ...Option) (Limiter, error) {
	o := applyOptions(opts)
	return newStandalone(cfg, o.logger, o.meter)
}

// NewDistributed 创建分布式限流器，Redis 连接的生命周期由调用方管理
func NewDistributed(redisConn connector.RedisConnector, cfg *DistributedConfig, opts ...Option) (Limiter, error) {
	if redisConn == nil {
		return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
	}
	o := applyOptions(opts)
	return newDistributed(cfg, redisConn, o.logger, o.meter)
}

func validateLimit(limit Limit, n int) error {
	if limit.Rate <= 0 || limit.Burst <= 0 {
		return ErrInvalidLimit
	}
	if n <= 0 {
		return xerrors.Wrap(ErrInvalidLimit, "n must be positive")
	}
	return nil
}

func debugCheck(logger clog.Logger, key string, allowed bool, limit Limit, n int) {
	logger.Debug("rate limit check",
		clog.String("key", key),
		clog.Bool("allowed", allowed),
		clog.Float64("rate", limit.Rate),
		clog.Int("burst", limit.Burst),
		clog.Int("requested", n))
}
