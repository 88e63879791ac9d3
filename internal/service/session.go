// Package service holds the request-independent logic shared by handlers
// and middleware: session lifecycle, authorization rules, captcha checks,
// audit publishing and background jobs.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/oops"

	"github.com/iliyamo/runly/internal/model"
	"github.com/iliyamo/runly/internal/repository"
	"github.com/iliyamo/runly/internal/utils"
)

// SessionStore persists session rows.
type SessionStore interface {
	Create(ctx context.Context, token string, userID uint64, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*model.Session, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserLookup loads the user behind a session.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// SessionManager issues, resolves and invalidates opaque session tokens.
// Every Resolve reads the store; nothing is cached between requests.
type SessionManager struct {
	sessions SessionStore
	users    UserLookup
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// NewSessionManager builds a manager issuing sessions valid for ttl.
func NewSessionManager(sessions SessionStore, users UserLookup, ttl time.Duration) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
		now:      time.Now,
		newToken: utils.NewSessionToken,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// TTL is the lifetime of a new session.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Create starts a session for userID and returns its token and expiry.
func (m *SessionManager) Create(ctx context.Context, userID uint64) (string, time.Time, error) {
	token, err := m.newToken()
	if err != nil {
		return "", time.Time{}, oops.In("session").Wrapf(err, "generate token")
	}
	expiresAt := m.now().UTC().Add(m.ttl).Truncate(time.Second)
	if err := m.sessions.Create(ctx, token, userID, expiresAt); err != nil {
		return "", time.Time{}, oops.In("session").With("user_id", userID).Wrapf(err, "store session")
	}
	return token, expiresAt, nil
}

// Resolve returns the identity behind token, or nil when the token is
// empty, unknown, expired or belongs to a user that no longer exists.
// Those are all ordinary "not signed in" outcomes, not errors.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, nil
	}
	s, err := m.sessions.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.In("session").Wrapf(err, "load session")
	}
	if !s.ActiveAt(m.now()) {
		if err := m.sessions.DeleteByToken(ctx, token); err != nil {
			log.Warn("drop expired session", "user_id", s.UserID, "err", err)
		}
		return nil, nil
	}
	u, err := m.users.GetByID(ctx, s.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.In("session").With("user_id", s.UserID).Wrapf(err, "load user")
	}
	return &model.Identity{UserID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}, nil
}

// Invalidate deletes the session. Unknown tokens are ignored.
func (m *SessionManager) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.sessions.DeleteByToken(ctx, token)
}

// PurgeExpired removes every session that expired before now.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.sessions.DeleteExpired(ctx, m.now().UTC())
}
