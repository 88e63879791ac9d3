// Package ratelimit counts attempts per key in fixed windows. The memory
// backend is exact within one process; the redis backend is shared between
// processes.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/runly/internal/config"
)

// Result is the outcome of one attempt.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // time until the window resets; set when !Allowed
}

// Limiter records an attempt for key and reports whether it is allowed.
// Allow must be atomic per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// New picks the backend from cfg. The redis backend needs a live client;
// when rdb is nil it falls back to memory.
func New(cfg config.RateLimitConfig, rdb *redis.Client) Limiter {
	if cfg.Backend == "redis" && rdb != nil {
		return NewRedis(rdb, cfg.Prefix, cfg.Max, cfg.Window)
	}
	return NewMemory(cfg.Prefix, cfg.Max, cfg.Window)
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}
