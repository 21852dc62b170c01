package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySlidingWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	l := NewMemory(3, time.Minute)
	l.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "user-service:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
		now = now.Add(10 * time.Second)
	}

	d, err := l.Allow(ctx, "user-service:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Date(2024, 2, 15, 10, 1, 0, 0, time.UTC), d.ResetAt)

	d, err = l.Allow(ctx, "payment-service:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "keys are independent")

	// first hit slides out of the window
	now = time.Date(2024, 2, 15, 10, 1, 0, 1, time.UTC)
	d, err = l.Allow(ctx, "user-service:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestMemoryRejectedRequestsDoNotExtendWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	l := NewMemory(1, time.Second)
	l.SetClock(func() time.Time { return now })

	d, _ := l.Allow(ctx, "k")
	require.True(t, d.Allowed)
	for i := 0; i < 5; i++ {
		now = now.Add(100 * time.Millisecond)
		d, _ = l.Allow(ctx, "k")
		assert.False(t, d.Allowed)
	}
	now = now.Add(600 * time.Millisecond)
	d, _ = l.Allow(ctx, "k")
	assert.True(t, d.Allowed)
}

func TestMemoryForgetsIdleClients(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	l := NewMemory(5, time.Minute)
	l.SetClock(func() time.Time { return now })

	for i := 0; i < 100; i++ {
		_, err := l.Allow(ctx, fmt.Sprintf("user-service:10.0.0.%d", i))
		require.NoError(t, err)
	}
	assert.Len(t, l.hits, 100)

	now = now.Add(2 * time.Minute)
	d, err := l.Allow(ctx, "user-service:10.0.1.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Len(t, l.hits, 1)
	assert.Contains(t, l.hits, "user-service:10.0.1.1")
}

func TestMemorySweepKeepsActiveClients(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	l := NewMemory(2, time.Minute)
	l.SetClock(func() time.Time { return now })

	_, _ = l.Allow(ctx, "idle")
	now = now.Add(50 * time.Second)
	_, _ = l.Allow(ctx, "busy")
	_, _ = l.Allow(ctx, "busy")

	now = now.Add(20 * time.Second)
	d, err := l.Allow(ctx, "busy")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "sweep must not reset a live window")
	assert.NotContains(t, l.hits, "idle")
}

func TestRedisLimiter(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis limiter tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	l := NewRedis(client, 2, time.Minute)
	key := "test:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), l.prefix+key) })

	d, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.True(t, d.ResetAt.After(time.Now()))
}
