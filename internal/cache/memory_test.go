package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2, time.Hour)

	c.Set(ctx, "a", []byte("1"))
	c.Set(ctx, "b", []byte("2"))
	c.Set(ctx, "c", []byte("3"))

	_, ok := c.Get(ctx, "a")
	assert.False(t, ok, "oldest entry is evicted")

	v, ok := c.Get(ctx, "c")
	require.True(t, ok)
	assert.Equal(t, []byte("3"), v)
	assert.Equal(t, 2, c.Len())
	assert.NoError(t, c.Close())
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10, 20*time.Millisecond)
	c.Set(ctx, "k", []byte("v"))

	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("memcached", Options{})
	assert.Error(t, err)

	c, err := New("memory", Options{Size: 5, TTL: time.Minute})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewRedisUnreachable(t *testing.T) {
	_, err := NewRedis(Options{RedisAddress: "127.0.0.1:1", TTL: time.Minute})
	assert.Error(t, err)
}
