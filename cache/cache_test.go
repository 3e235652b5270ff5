package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	releaseKey string
}

func TestCache_GetSet(t *testing.T) {
	c, err := New[*snapshot](nil, WithName("configs"))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, ok := c.Get(ctx, "application")
	assert.False(t, ok)

	s := &snapshot{releaseKey: "r1"}
	c.Set("application", s)
	got, ok := c.Get(ctx, "application")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, c.Len())

	c.Invalidate("application")
	_, ok = c.Get(ctx, "application")
	assert.False(t, ok)

	st := c.Stats()
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 2, st.Misses)
}

func TestCache_AccessExpiry(t *testing.T) {
	c, err := New[string](&Config{TTL: 100 * time.Millisecond})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	c.Set("k", "v")

	// 持续读取会延长存活时间
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		_, ok := c.Get(ctx, "k")
		require.True(t, ok)
	}

	time.Sleep(200 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New[string](&Config{TTL: time.Microsecond})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
