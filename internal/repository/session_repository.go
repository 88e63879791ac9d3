package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/runly/internal/model"
)

// SessionRepo persists opaque session tokens.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row for userID.
func (r *SessionRepo) Create(ctx context.Context, token string, userID uint64, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?,?,?,?)",
		token, userID, expiresAt.UTC().Truncate(time.Second), nowUTC())
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetByToken returns the session row for token, expired or not. Expiry is
// the caller's decision.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	var s model.Session
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, token, user_id, expires_at, created_at FROM sessions WHERE token=? LIMIT 1",
		token).Scan(&s.ID, &s.Token, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// DeleteByToken removes a session. Deleting a missing token is not an error.
func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE token=?", token)
	return err
}

// DeleteExpired removes sessions whose expiry is at or before now and
// reports how many rows were removed.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UTC().Truncate(time.Second))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
