package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type window struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process fixed-window limiter. Entries expire with their
// window so memory stays bounded by the number of active keys.
type Memory struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewMemory allows limit attempts per key in every window.
func NewMemory(prefix string, limit int, window time.Duration) *Memory {
	return &Memory{
		cache:  gocache.New(window, 2*window),
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	key = m.prefix + ":" + key
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var w *window
	if v, ok := m.cache.Get(key); ok {
		w = v.(*window)
	}
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(m.window)}
		m.cache.Set(key, w, m.window)
	}
	w.count++

	res := Result{Limit: m.limit, Remaining: remaining(m.limit, w.count)}
	if w.count <= m.limit {
		res.Allowed = true
		return res, nil
	}
	res.RetryAfter = w.resetAt.Sub(now)
	return res, nil
}
