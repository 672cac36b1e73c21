package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRedisTestBackend connects to the Redis at REDIS_ADDR and skips the test when it is unset
func newRedisTestBackend(t *testing.T, ttl time.Duration) *RedisBackend {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	backend, err := NewRedisBackend(RedisConfig{Addr: addr, TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestRedisBackend(t *testing.T) {
	backend := newRedisTestBackend(t, time.Hour)
	clientID := "test-" + uuid.NewString()

	s, err := backend.For(clientID)
	require.NoError(t, err)
	exerciseStorage(t, s)

	require.NoError(t, s.SetItem("session", "token"))
	t.Cleanup(func() { s.RemoveItem("session") })

	ctx := context.Background()
	ttl, err := backend.client.TTL(ctx, "client:"+clientID+":session").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	again, err := backend.For(clientID)
	require.NoError(t, err)
	value, ok, err := again.GetItem("session")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "token", value)

	other, err := backend.For("test-" + uuid.NewString())
	require.NoError(t, err)
	_, ok, err = other.GetItem("session")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackend_Offline(t *testing.T) {
	_, err := NewRedisBackend(RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "failed to connect to redis")

	backend := &RedisBackend{client: redis.NewClient(&redis.Options{
		Addr:       "127.0.0.1:1",
		MaxRetries: -1,
	})}
	defer backend.Close()

	_, err = backend.For("../etc")
	assert.ErrorIs(t, err, ErrInvalidKey)

	s, err := backend.For("client-1")
	require.NoError(t, err)
	_, _, err = s.GetItem("cart")
	assert.ErrorContains(t, err, "failed to read cart")
	assert.ErrorContains(t, s.SetItem("cart", "[]"), "failed to write cart")
	assert.ErrorContains(t, s.RemoveItem("cart"), "failed to remove cart")
}
