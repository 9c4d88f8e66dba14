package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	c := NewRedisCache(rdb, "test")

	var out map[string]int
	hit, err := c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Minute))
	assert.True(t, mr.Exists("test:k"))
	hit, err = c.GetJSON(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["a"])

	mr.FastForward(2 * time.Minute)
	hit, _ = c.GetJSON(ctx, "k", &out)
	assert.False(t, hit)

	require.NoError(t, mr.Set("test:bad", "{not json"))
	hit, err = c.GetJSON(ctx, "bad", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("test:bad"))

	require.NoError(t, c.SetJSON(ctx, "x", 1, 0))
	require.NoError(t, c.Del(ctx, "x"))
	assert.False(t, mr.Exists("test:x"))
}
