// internal/common/database/redis_test.go
package database

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-assistant/internal/common/config"
)

func newTestRedis(t *testing.T) *RedisClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisSetGet(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Set(ctx, "assistant:query:abc", "payload", time.Minute))

	value, err := client.Get(ctx, "assistant:query:abc")
	require.NoError(t, err)
	assert.Equal(t, "payload", value)
}

func TestRedisGetMissingKey(t *testing.T) {
	client := newTestRedis(t)

	_, err := client.Get(context.Background(), "absent")
	assert.Error(t, err)
}

func TestRedisDel(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", "v", 0))
	require.NoError(t, client.Del(ctx, "k"))

	_, err := client.Get(ctx, "k")
	assert.Error(t, err)
}
