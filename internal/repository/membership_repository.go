package repository

import (
	"context"
	"database/sql"
	"errors"
)

// MembershipRepo stores which users joined which runs (table run_users).
type MembershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

// IsMember reports whether userID joined runID.
func (r *MembershipRepo) IsMember(ctx context.Context, runID, userID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM run_users WHERE run_id = ? AND user_id = ? LIMIT 1", runID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Join adds userID to runID. Joining twice is not an error: the second call
// reports alreadyJoined. ErrNotFound is returned if the run disappeared.
func (r *MembershipRepo) Join(ctx context.Context, runID, userID uint64) (alreadyJoined bool, err error) {
	member, err := r.IsMember(ctx, runID, userID)
	if err != nil || member {
		return member, err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO run_users (run_id, user_id, created_at) VALUES (?, ?, ?)", runID, userID, nowUTC())
	switch {
	case err == nil:
		return false, nil
	case isDuplicate(err):
		// Lost a race with a concurrent join of the same user.
		return true, nil
	case isMissingParent(err):
		return false, ErrNotFound
	}
	return false, err
}

// CountForUser returns how many runs userID joined.
func (r *MembershipRepo) CountForUser(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM run_users WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

func participantsOf(ctx context.Context, q querier, runIDs []uint64) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64, len(runIDs))
	if len(runIDs) == 0 {
		return out, nil
	}
	marks, args := inList(runIDs)
	rows, err := q.QueryContext(ctx,
		"SELECT run_id, user_id FROM run_users WHERE run_id IN ("+marks+") ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var runID, userID uint64
		if err := rows.Scan(&runID, &userID); err != nil {
			return nil, err
		}
		out[runID] = append(out[runID], userID)
	}
	return out, rows.Err()
}
