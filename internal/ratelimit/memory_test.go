package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/runly/internal/config"
)

func TestMemoryAllowsUpToLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	l := NewMemory("rl", 3, time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "login:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i+1)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter)
}

func TestMemoryKeysAreIndependent(t *testing.T) {
	l := NewMemory("rl", 1, time.Minute)
	ctx := context.Background()

	res, _ := l.Allow(ctx, "login:a")
	assert.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "login:b")
	assert.True(t, res.Allowed)
	res, _ = l.Allow(ctx, "login:a")
	assert.False(t, res.Allowed)
}

func TestMemoryWindowResets(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	l := NewMemory("rl", 1, time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	res, _ := l.Allow(ctx, "k")
	assert.True(t, res.Allowed)
	now = now.Add(30 * time.Second)
	res, _ = l.Allow(ctx, "k")
	assert.False(t, res.Allowed)
	assert.Equal(t, 30*time.Second, res.RetryAfter)

	now = now.Add(30 * time.Second)
	res, _ = l.Allow(ctx, "k")
	assert.True(t, res.Allowed)
}

func TestMemoryConcurrentAttemptsAreCounted(t *testing.T) {
	const limit = 10
	l := NewMemory("rl", limit, time.Hour)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(ctx, "shared")
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, limit, allowed)
}

func TestNewFallsBackToMemory(t *testing.T) {
	l := New(config.RateLimitConfig{Backend: "redis", Prefix: "rl", Max: 2, Window: time.Minute}, nil)
	_, ok := l.(*Memory)
	assert.True(t, ok)
}
