package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/runly/internal/model"
)

// MessageRepo stores run chat messages.
type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

// Create inserts m and fills its ID. SentAt must be set by the caller.
// ErrNotFound is returned if the run or a user vanished meanwhile.
func (r *MessageRepo) Create(ctx context.Context, m *model.Message) error {
	m.SentAt = m.SentAt.UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO messages (run_id, from_user_id, to_user_id, content, sent_at) VALUES (?, ?, ?, ?, ?)",
		m.RunID, m.FromUserID, m.ToUserID, m.Content, m.SentAt)
	if err != nil {
		if isMissingParent(err) {
			return ErrNotFound
		}
		return err
	}
	m.ID, err = lastID(res)
	return err
}

// GetInRun fetches message id only if it belongs to runID.
func (r *MessageRepo) GetInRun(ctx context.Context, runID, id uint64) (*model.Message, error) {
	var m model.Message
	err := r.db.QueryRowContext(ctx,
		"SELECT id, run_id, from_user_id, to_user_id, content, sent_at FROM messages WHERE id = ? AND run_id = ?",
		id, runID).Scan(&m.ID, &m.RunID, &m.FromUserID, &m.ToUserID, &m.Content, &m.SentAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// UpdateContent replaces the text of a message. ErrNotFound is returned
// when the message no longer exists.
func (r *MessageRepo) UpdateContent(ctx context.Context, id uint64, content string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE messages SET content = ? WHERE id = ?", content, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes a message. Deleting a missing message is not an error.
func (r *MessageRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	return err
}

// MessageRow is a message with its author's username and run title.
type MessageRow struct {
	Message      model.Message
	FromUsername string
	RunTitle     string
}

// ListByRun returns the messages of runID, oldest first.
func (r *MessageRepo) ListByRun(ctx context.Context, runID uint64) ([]MessageRow, error) {
	const q = `SELECT m.id, m.run_id, m.from_user_id, m.to_user_id, m.content, m.sent_at, u.username, r.title
	           FROM messages m
	           JOIN users u ON u.id = m.from_user_id
	           JOIN runs r ON r.id = m.run_id
	           WHERE m.run_id = ?
	           ORDER BY m.sent_at ASC, m.id ASC`
	return r.query(ctx, q, runID)
}

// RecentForUser returns the latest messages across every run userID joined.
func (r *MessageRepo) RecentForUser(ctx context.Context, userID uint64, limit int) ([]MessageRow, error) {
	const q = `SELECT m.id, m.run_id, m.from_user_id, m.to_user_id, m.content, m.sent_at, u.username, r.title
	           FROM messages m
	           JOIN runs r ON r.id = m.run_id
	           JOIN users u ON u.id = m.from_user_id
	           JOIN run_users ru ON ru.run_id = r.id AND ru.user_id = ?
	           ORDER BY m.sent_at DESC, m.id DESC
	           LIMIT ?`
	return r.query(ctx, q, userID, limit)
}

func (r *MessageRepo) query(ctx context.Context, q string, args ...any) ([]MessageRow, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var row MessageRow
		m := &row.Message
		if err := rows.Scan(&m.ID, &m.RunID, &m.FromUserID, &m.ToUserID, &m.Content, &m.SentAt,
			&row.FromUsername, &row.RunTitle); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
