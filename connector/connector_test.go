package connector

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_Validate(t *testing.T) {
	_, err := NewRedis(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewRedis(&RedisConfig{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestRedisConnector_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	conn, err := NewRedis(&RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.Equal(t, "default", conn.Name())
	assert.False(t, conn.IsHealthy())

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())
	require.NoError(t, conn.GetClient().Set(ctx, "beacon", "ok", 0).Err())
	v, err := mr.Get("beacon")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	require.NoError(t, conn.HealthCheck(ctx))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
	assert.ErrorIs(t, conn.Connect(ctx), ErrAlreadyClosed)
}

func TestRedisConnector_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	conn, err := NewRedis(&RedisConfig{Name: "down", Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	err = conn.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, conn.IsHealthy())
}

func TestNewEtcd_Validate(t *testing.T) {
	_, err := NewEtcd(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewEtcd(&EtcdConfig{})
	assert.ErrorIs(t, err, ErrConfig)
}
