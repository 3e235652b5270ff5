package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/metrics"
	"github.com/ceyewan/beacon/xerrors"
)

// luaScript 基于时间戳的令牌桶
//
// KEYS[1]: 限流键
// ARGV[1]: rate（每秒令牌数）
// ARGV[2]: capacity（桶容量）
// ARGV[3]: now（秒，浮点）
// ARGV[4]: requested（本次消耗的令牌数）
//
// 键中保存下一次可放行的时间戳，返回 {allowed, remaining}。
const luaScript = `
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local interval_per_token = 1 / rate
local fill_time = capacity * interval_per_token

local last_refreshed = tonumber(redis.call("GET", KEYS[1]))
if last_refreshed == nil then
  last_refreshed = now
end

local next_available_time = math.max(last_refreshed, now)
local new_refreshed = next_available_time + requested * interval_per_token
local allow_at_most = now + fill_time

if new_refreshed <= allow_at_most then
  redis.call("SET", KEYS[1], tostring(new_refreshed), "EX", math.ceil(fill_time * 2))
  return {1, math.floor((allow_at_most - new_refreshed) / interval_per_token)}
end
return {0, math.floor((allow_at_most - next_available_time) / interval_per_token)}
`

type distributedLimiter struct {
	client  *redis.Client
	prefix  string
	logger  clog.Logger
	metrics *limiterMetrics
	script  *redis.Script
	now     func() time.Time
}

func newDistributed(cfg *DistributedConfig, redisConn connector.RedisConnector, logger clog.Logger, meter metrics.Meter) (Limiter, error) {
	if redisConn == nil {
		return nil, ErrConnectorNil
	}
	if cfg == nil {
		cfg = &DistributedConfig{}
	}
	cfg.setDefaults()
	if logger == nil {
		logger = clog.Discard()
	}

	l := &distributedLimiter{
		client:  redisConn.GetClient(),
		prefix:  cfg.Prefix,
		logger:  logger,
		metrics: newLimiterMetrics(meter, string(DriverDistributed)),
		script:  redis.NewScript(luaScript),
		now:     time.Now,
	}
	logger.Info("distributed rate limiter created", clog.String("prefix", cfg.Prefix))
	return l, nil
}

func (l *distributedLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *distributedLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if key == "" {
		return false, ErrKeyEmpty
	}
	if err := validateLimit(limit, n); err != nil {
		return false, err
	}

	now := float64(l.now().UnixNano()) / 1e9
	args := []any{
		strconv.FormatFloat(limit.Rate, 'f', -1, 64),
		limit.Burst,
		strconv.FormatFloat(now, 'f', 6, 64),
		n,
	}
	result, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, args...).Int64Slice()
	if err != nil {
		l.metrics.fail(ctx)
		l.logger.Error("failed to execute rate limit script", clog.String("key", key), clog.Error(err))
		return false, xerrors.Wrap(err, "execute rate limit script")
	}
	if len(result) != 2 {
		l.metrics.fail(ctx)
		return false, xerrors.Wrapf(ErrScriptResult, "%v", result)
	}

	allowed := result[0] == 1
	l.metrics.record(ctx, allowed)
	debugCheck(l.logger.With(clog.Int64("remaining", result[1])), key, allowed, limit, n)
	return allowed, nil
}

// Wait 分布式环境下无法精确实现阻塞等待
func (l *distributedLimiter) Wait(context.Context, string, Limit) error {
	return ErrNotSupported
}

// Close 连接由 Connector 管理，这里无需释放
func (l *distributedLimiter) Close() error {
	return nil
}
