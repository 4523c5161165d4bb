package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, "127.0.0.1:6379", o.Addr)
	assert.Equal(t, 10, o.PoolSize)
	assert.Equal(t, 2*time.Second, o.IOTimeout)

	o = Options{Addr: "cache:6380", PoolSize: 3}.withDefaults()
	assert.Equal(t, "cache:6380", o.Addr)
	assert.Equal(t, 3, o.PoolSize)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := NewRedisClient(context.Background(), Options{
		Addr:        "127.0.0.1:1",
		PingTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis 127.0.0.1:1")
}

func TestPinger(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.Error(t, Pinger(client)(ctx))
}
