package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PawMart/internal/pkg/env"
	"github.com/ManuelReschke/PawMart/internal/pkg/gateway"
)

const isolatedCacheTestRedisDB = 13

// newTestRedis connects to a local redis on an isolated database and skips
// the test when none is reachable.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	cfg := Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     env.GetEnv("CACHE_PORT", "6379"),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr(), Password: cfg.Password, DB: isolatedCacheTestRedisDB})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})
	return rdb
}

func TestIntentCache_RoundTrip(t *testing.T) {
	c := NewIntentCache(newTestRedis(t))
	ctx := context.Background()

	_, ok := c.GetIntent(ctx, "pi_1")
	assert.False(t, ok)

	c.SetIntent(ctx, &gateway.Intent{ID: "pi_1", ClientSecret: "secret", Status: gateway.StatusProcessing, Amount: 5000, Currency: "usd"}, time.Minute)
	got, ok := c.GetIntent(ctx, "pi_1")
	require.True(t, ok)
	assert.Equal(t, gateway.StatusProcessing, got.Status)
	assert.Equal(t, int64(5000), got.Amount)
	assert.Empty(t, got.ClientSecret, "client secrets are never cached")

	c.DeleteIntent(ctx, "pi_1")
	_, ok = c.GetIntent(ctx, "pi_1")
	assert.False(t, ok)
}

func TestIntentCache_UnreachableIsMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewIntentCache(rdb)

	c.SetIntent(context.Background(), &gateway.Intent{ID: "pi_1"}, time.Minute)
	_, ok := c.GetIntent(context.Background(), "pi_1")
	assert.False(t, ok)
}

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, "cache:6379", Config{Host: "cache", Port: "6379"}.Addr())
}
