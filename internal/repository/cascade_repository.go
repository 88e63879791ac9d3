package repository

import (
	"context"
	"database/sql"
)

// CascadeRepo removes runs and users together with every row that
// references them. Each delete runs in a single transaction, so a failure
// part way leaves the database untouched.
type CascadeRepo struct {
	db *sql.DB
}

func NewCascadeRepo(db *sql.DB) *CascadeRepo { return &CascadeRepo{db: db} }

// DeleteRun removes a run with its messages, memberships and ratings.
// ErrNotFound is returned when the run does not exist.
func (r *CascadeRepo) DeleteRun(ctx context.Context, runID uint64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	var one int
	if err = tx.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", runID).Scan(&one); err != nil {
		return notFound(err)
	}
	return deleteRunRows(ctx, tx, runID)
}

// DeleteUser removes a user and everything that points at them: the runs
// they host (each cascaded like DeleteRun), messages and ratings in both
// directions, memberships and sessions. It returns how many hosted runs
// went with the user.
func (r *CascadeRepo) DeleteUser(ctx context.Context, userID uint64) (hostedRuns int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	var one int
	if err = tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", userID).Scan(&one); err != nil {
		return 0, notFound(err)
	}

	hosted, err := hostedRunIDs(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	for _, runID := range hosted {
		if err = deleteRunRows(ctx, tx, runID); err != nil {
			return 0, err
		}
	}

	steps := []string{
		"DELETE FROM messages WHERE from_user_id = ?",
		"DELETE FROM messages WHERE to_user_id = ?",
		"DELETE FROM ratings WHERE from_user_id = ?",
		"DELETE FROM ratings WHERE to_user_id = ?",
		"DELETE FROM run_users WHERE user_id = ?",
		"DELETE FROM sessions WHERE user_id = ?",
		"DELETE FROM users WHERE id = ?",
	}
	for _, stmt := range steps {
		if _, err = tx.ExecContext(ctx, stmt, userID); err != nil {
			return 0, err
		}
	}
	return len(hosted), nil
}

// deleteRunRows removes dependents first so no foreign key is left dangling.
func deleteRunRows(ctx context.Context, q querier, runID uint64) error {
	steps := []string{
		"DELETE FROM messages WHERE run_id = ?",
		"DELETE FROM run_users WHERE run_id = ?",
		"DELETE FROM ratings WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	}
	for _, stmt := range steps {
		if _, err := q.ExecContext(ctx, stmt, runID); err != nil {
			return err
		}
	}
	return nil
}

// hostedRunIDs reads the ids up front; MySQL refuses new statements on a
// connection with unread rows.
func hostedRunIDs(ctx context.Context, q querier, userID uint64) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM runs WHERE host_user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
