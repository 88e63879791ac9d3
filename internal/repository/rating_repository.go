package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/runly/internal/model"
)

// RatingRepo stores host ratings. At most one rating exists per
// (run, rater); the unique key enforces it even under concurrent inserts.
type RatingRepo struct {
	db *sql.DB
}

func NewRatingRepo(db *sql.DB) *RatingRepo { return &RatingRepo{db: db} }

const ratingColumns = "id, run_id, from_user_id, to_user_id, score, comment, created_at"

// Create inserts rt. ErrRatingExists is returned for a second rating of the
// same run by the same user.
func (r *RatingRepo) Create(ctx context.Context, rt *model.Rating) error {
	rt.CreatedAt = nowUTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO ratings (run_id, from_user_id, to_user_id, score, comment, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rt.RunID, rt.FromUserID, rt.ToUserID, rt.Score, rt.Comment, rt.CreatedAt)
	if err != nil {
		switch {
		case isDuplicate(err):
			return ErrRatingExists
		case isMissingParent(err):
			return ErrNotFound
		}
		return err
	}
	rt.ID, err = lastID(res)
	return err
}

// GetByID fetches a rating.
func (r *RatingRepo) GetByID(ctx context.Context, id uint64) (*model.Rating, error) {
	var rt model.Rating
	err := r.db.QueryRowContext(ctx, "SELECT "+ratingColumns+" FROM ratings WHERE id = ?", id).
		Scan(&rt.ID, &rt.RunID, &rt.FromUserID, &rt.ToUserID, &rt.Score, &rt.Comment, &rt.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

// HasRated reports whether userID already rated runID.
func (r *RatingRepo) HasRated(ctx context.Context, runID, userID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM ratings WHERE run_id = ? AND from_user_id = ? LIMIT 1", runID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Update replaces score and comment of a rating, or returns ErrNotFound.
func (r *RatingRepo) Update(ctx context.Context, id uint64, score int, comment string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE ratings SET score = ?, comment = ? WHERE id = ?", score, comment, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes a rating.
func (r *RatingRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM ratings WHERE id = ?", id)
	return err
}

// ReceivedRatingRow is a rating received by a user, with context.
type ReceivedRatingRow struct {
	Rating       model.Rating
	RunTitle     string
	FromUsername string
}

// ReceivedBy lists the ratings whose ratee is userID, newest first.
func (r *RatingRepo) ReceivedBy(ctx context.Context, userID uint64) ([]ReceivedRatingRow, error) {
	const q = `SELECT rt.id, rt.run_id, rt.from_user_id, rt.to_user_id, rt.score, rt.comment, rt.created_at,
	                  r.title, u.username
	           FROM ratings rt
	           JOIN runs r ON r.id = rt.run_id
	           JOIN users u ON u.id = rt.from_user_id
	           WHERE rt.to_user_id = ?
	           ORDER BY rt.created_at DESC, rt.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReceivedRatingRow
	for rows.Next() {
		var row ReceivedRatingRow
		rt := &row.Rating
		if err := rows.Scan(&rt.ID, &rt.RunID, &rt.FromUserID, &rt.ToUserID, &rt.Score, &rt.Comment, &rt.CreatedAt,
			&row.RunTitle, &row.FromUsername); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ByRaterForRuns returns the ratings userID left on any of runIDs, keyed
// by run id.
func (r *RatingRepo) ByRaterForRuns(ctx context.Context, userID uint64, runIDs []uint64) (map[uint64]model.Rating, error) {
	out := make(map[uint64]model.Rating)
	if len(runIDs) == 0 {
		return out, nil
	}
	marks, args := inList(runIDs)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+ratingColumns+" FROM ratings WHERE from_user_id = ? AND run_id IN ("+marks+")",
		append([]any{userID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var rt model.Rating
		if err := rows.Scan(&rt.ID, &rt.RunID, &rt.FromUserID, &rt.ToUserID, &rt.Score, &rt.Comment, &rt.CreatedAt); err != nil {
			return nil, err
		}
		out[rt.RunID] = rt
	}
	return out, rows.Err()
}
