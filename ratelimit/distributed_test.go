package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/connector"
)

func newDistributedLimiter(t *testing.T) (*distributedLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, conn.Connect(context.Background()))
	t.Cleanup(func() { _ = conn.Close() })

	limiter, err := New(&Config{
		Driver:      DriverDistributed,
		Distributed: &DistributedConfig{Prefix: "test:ratelimit:"},
	}, WithRedisConnector(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter.(*distributedLimiter), mr
}

func TestDistributedLimiter_Allow(t *testing.T) {
	limiter, mr := newDistributedLimiter(t)
	ctx := context.Background()

	// 固定时钟，令牌不会随真实时间恢复
	now := time.Unix(1760000000, 0)
	limiter.now = func() time.Time { return now }

	limit := Limit{Rate: 1, Burst: 2}
	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "discovery:demo", limit)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, "discovery:demo", limit)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.True(t, mr.Exists("test:ratelimit:discovery:demo"))

	now = now.Add(time.Second)
	allowed, err = limiter.Allow(ctx, "discovery:demo", limit)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDistributedLimiter_SharedAcrossInstances(t *testing.T) {
	a, mr := newDistributedLimiter(t)

	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	bl, err := NewDistributed(conn, &DistributedConfig{Prefix: "test:ratelimit:"})
	require.NoError(t, err)
	b := bl.(*distributedLimiter)

	now := time.Unix(1760000000, 0)
	a.now = func() time.Time { return now }
	b.now = a.now

	limit := Limit{Rate: 0.2, Burst: 1}
	allowed, err := a.Allow(context.Background(), "discovery:demo", limit)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = b.Allow(context.Background(), "discovery:demo", limit)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestDistributedLimiter_Errors(t *testing.T) {
	limiter, mr := newDistributedLimiter(t)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "", Limit{Rate: 1, Burst: 1})
	assert.ErrorIs(t, err, ErrKeyEmpty)
	_, err = limiter.Allow(ctx, "k", Limit{Rate: 1})
	assert.ErrorIs(t, err, ErrInvalidLimit)
	assert.ErrorIs(t, limiter.Wait(ctx, "k", Limit{Rate: 1, Burst: 1}), ErrNotSupported)

	mr.SetError("LOADING redis is loading")
	_, err = limiter.Allow(ctx, "k", Limit{Rate: 1, Burst: 1})
	assert.Error(t, err)
}

func TestNewDistributed_NilConnector(t *testing.T) {
	_, err := NewDistributed(nil, nil)
	assert.ErrorIs(t, err, ErrConnectorNil)
}
