package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// The first hit of a window sets its expiry; later hits only count.
var fixedWindowScript = redis.NewScript(`
    local key = KEYS[1]
    local window_ms = tonumber(ARGV[1])

    local count = redis.call('INCR', key)
    if count == 1 then
        redis.call('PEXPIRE', key, window_ms)
    end
    local ttl_ms = redis.call('PTTL', key)
    if ttl_ms < 0 then
        redis.call('PEXPIRE', key, window_ms)
        ttl_ms = window_ms
    end
    return { count, ttl_ms }
`)

// Redis is a fixed-window limiter shared by every process using the same
// redis database.
type Redis struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(rdb *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	vals, err := fixedWindowScript.Run(ctx, r.rdb, []string{r.prefix + ":" + key}, r.window.Milliseconds()).Result()
	if err != nil {
		return Result{}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script result %#v", vals)
	}
	count := int(asInt64(arr[0]))
	ttl := time.Duration(asInt64(arr[1])) * time.Millisecond

	res := Result{Limit: r.limit, Remaining: remaining(r.limit, count)}
	if count <= r.limit {
		res.Allowed = true
		return res, nil
	}
	res.RetryAfter = ttl
	return res, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
