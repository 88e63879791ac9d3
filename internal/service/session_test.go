package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/runly/internal/model"
	"github.com/iliyamo/runly/internal/repository"
)

type memSessions struct {
	mu   sync.Mutex
	rows map[string]model.Session
}

func newMemSessions() *memSessions { return &memSessions{rows: map[string]model.Session{}} }

func (m *memSessions) Create(_ context.Context, token string, userID uint64, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[token] = model.Session{Token: token, UserID: userID, ExpiresAt: expiresAt}
	return nil
}

func (m *memSessions) GetByToken(_ context.Context, token string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) DeleteByToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, token)
	return nil
}

func (m *memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for tok, s := range m.rows {
		if !s.ActiveAt(now) {
			delete(m.rows, tok)
			n++
		}
	}
	return n, nil
}

type memUsers map[uint64]*model.User

func (m memUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func newTestManager(now *time.Time) (*SessionManager, *memSessions, memUsers) {
	store := newMemSessions()
	users := memUsers{1: {ID: 1, Email: "a@example.com", Username: "ana", Role: model.RoleCoach}}
	sm := NewSessionManager(store, users, time.Hour).WithClock(func() time.Time { return *now })
	return sm, store, users
}

func TestSessionResolveReturnsIdentity(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sm, _, _ := newTestManager(&now)
	ctx := context.Background()

	token, expiresAt, err := sm.Create(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	id, err := sm.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, model.Identity{UserID: 1, Email: "a@example.com", Username: "ana", Role: model.RoleCoach}, *id)
}

func TestSessionResolveAnonymousOutcomes(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sm, store, users := newTestManager(&now)
	ctx := context.Background()

	id, err := sm.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = sm.Resolve(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, id)

	token, _, err := sm.Create(ctx, 1)
	require.NoError(t, err)

	// the user row is gone: the session no longer authenticates
	delete(users, 1)
	id, err = sm.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, id)

	_, stillStored := store.rows[token]
	assert.True(t, stillStored)
}

func TestSessionExpiresExactlyAtTTL(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sm, store, _ := newTestManager(&now)
	ctx := context.Background()

	token, _, err := sm.Create(ctx, 1)
	require.NoError(t, err)

	now = now.Add(time.Hour - time.Second)
	id, err := sm.Resolve(ctx, token)
	require.NoError(t, err)
	assert.NotNil(t, id)

	now = now.Add(time.Second)
	id, err = sm.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, id)

	_, stillStored := store.rows[token]
	assert.False(t, stillStored, "expired session should be dropped on resolve")
}

func TestSessionInvalidateAndPurge(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	sm, store, _ := newTestManager(&now)
	ctx := context.Background()

	keep, _, err := sm.Create(ctx, 1)
	require.NoError(t, err)
	drop, _, err := sm.Create(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, sm.Invalidate(ctx, drop))
	require.NoError(t, sm.Invalidate(ctx, ""))
	id, err := sm.Resolve(ctx, drop)
	require.NoError(t, err)
	assert.Nil(t, id)

	now = now.Add(2 * time.Hour)
	n, err := sm.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NotContains(t, store.rows, keep)
}
