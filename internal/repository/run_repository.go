// Package repository contains data access logic separated from HTTP handlers.
// This file holds the run queries: creation with its location and host
// membership, updates, and the read models used by listings.
package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/runly/internal/model"
)

// RunRepo encapsulates all database queries related to runs.
type RunRepo struct {
	db *sql.DB // db is the underlying database connection pool
}

// NewRunRepo constructs a RunRepo with the provided DB handle.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// LocationInput names the place of a run. Lat and Lng are optional.
type LocationInput struct {
	City         string
	Municipality string
	Lat          *float64
	Lng          *float64
}

const runColumns = "id, title, route, starts_at, distance_km, pace_min_per_km, location_id, host_user_id, created_at"

// GetByID fetches a run. ErrNotFound is returned if no row matches.
func (r *RunRepo) GetByID(ctx context.Context, id uint64) (*model.Run, error) {
	var run model.Run
	err := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id).
		Scan(&run.ID, &run.Title, &run.Route, &run.StartsAt, &run.DistanceKm, &run.PaceMinPerKm,
			&run.LocationID, &run.HostUserID, &run.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &run, nil
}

// Create resolves the location, inserts the run and joins the host to it,
// all in one transaction. On success run.ID, LocationID and CreatedAt are
// populated.
func (r *RunRepo) Create(ctx context.Context, run *model.Run, loc LocationInput) (err error) {
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

	if run.LocationID, err = resolveLocation(ctx, tx, loc.City, loc.Municipality, loc.Lat, loc.Lng); err != nil {
		return err
	}
	now := nowUTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (title, route, starts_at, distance_km, pace_min_per_km, location_id, host_user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Title, run.Route, run.StartsAt.UTC().Truncate(time.Second), run.DistanceKm, run.PaceMinPerKm,
		run.LocationID, run.HostUserID, now)
	if err != nil {
		if isMissingParent(err) {
			err = ErrNotFound
		}
		return err
	}
	if run.ID, err = lastID(res); err != nil {
		return err
	}
	// The host is always a participant of their own run.
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO run_users (run_id, user_id, created_at) VALUES (?, ?, ?)",
		run.ID, run.HostUserID, now); err != nil {
		return err
	}
	run.CreatedAt = now
	return nil
}

// Update rewrites the mutable fields of run and points it at the location
// for (city, municipality), creating that location when needed.
func (r *RunRepo) Update(ctx context.Context, run *model.Run, loc LocationInput) (err error) {
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

	if run.LocationID, err = resolveLocation(ctx, tx, loc.City, loc.Municipality, loc.Lat, loc.Lng); err != nil {
		return err
	}
	var exists int
	if err = tx.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", run.ID).Scan(&exists); err != nil {
		return notFound(err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET title = ?, route = ?, starts_at = ?, distance_km = ?, pace_min_per_km = ?, location_id = ?
		 WHERE id = ?`,
		run.Title, run.Route, run.StartsAt.UTC().Truncate(time.Second), run.DistanceKm, run.PaceMinPerKm,
		run.LocationID, run.ID)
	return err
}

// RunFilter narrows the run listing.
type RunFilter struct {
	Query   string   // case-insensitive substring of title, route, city or municipality
	MaxPace *float64 // keep runs with pace <= MaxPace
}

// RunListRow is a run with its location, host name and participants.
type RunListRow struct {
	Run            model.Run
	Location       model.Location
	HostUsername   string
	ParticipantIDs []uint64
}

// List returns runs matching f ordered by start time.
func (r *RunRepo) List(ctx context.Context, f RunFilter) ([]RunListRow, error) {
	var (
		where []string
		args  []any
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, `(LOWER(r.title) LIKE ? OR LOWER(r.route) LIKE ? OR LOWER(l.city) LIKE ? OR LOWER(l.municipality) LIKE ?)`)
		args = append(args, like, like, like, like)
	}
	if f.MaxPace != nil {
		where = append(where, "r.pace_min_per_km <= ?")
		args = append(args, *f.MaxPace)
	}
	q := `SELECT r.id, r.title, r.route, r.starts_at, r.distance_km, r.pace_min_per_km, r.location_id, r.host_user_id, r.created_at,
	             l.city, l.municipality, l.lat, l.lng, u.username
	      FROM runs r
	      JOIN locations l ON l.id = r.location_id
	      JOIN users u ON u.id = r.host_user_id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY r.starts_at ASC, r.id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunListRow
	for rows.Next() {
		var (
			row      RunListRow
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&row.Run.ID, &row.Run.Title, &row.Run.Route, &row.Run.StartsAt, &row.Run.DistanceKm,
			&row.Run.PaceMinPerKm, &row.Run.LocationID, &row.Run.HostUserID, &row.Run.CreatedAt,
			&row.Location.City, &row.Location.Municipality, &lat, &lng, &row.HostUsername); err != nil {
			return nil, err
		}
		row.Location.ID = row.Run.LocationID
		row.Location.Lat, row.Location.Lng = floatPtr(lat), floatPtr(lng)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}
	ids := make([]uint64, len(out))
	for i := range out {
		ids[i] = out[i].Run.ID
	}
	participants, err := participantsOf(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].ParticipantIDs = participants[out[i].Run.ID]
		if out[i].ParticipantIDs == nil {
			out[i].ParticipantIDs = []uint64{}
		}
	}
	return out, nil
}

// AdminRunRow is one line of the admin run listing.
type AdminRunRow struct {
	ID                uint64
	Title             string
	StartsAt          time.Time
	HostUserID        uint64
	HostUsername      string
	City              string
	Municipality      string
	ParticipantsCount int
}

// ListForAdmin returns every run, latest start first, with participant counts.
func (r *RunRepo) ListForAdmin(ctx context.Context) ([]AdminRunRow, error) {
	const q = `SELECT r.id, r.title, r.starts_at, r.host_user_id, u.username, l.city, l.municipality,
	                  (SELECT COUNT(*) FROM run_users m WHERE m.run_id = r.id)
	           FROM runs r
	           JOIN users u ON u.id = r.host_user_id
	           JOIN locations l ON l.id = r.location_id
	           ORDER BY r.starts_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminRunRow
	for rows.Next() {
		var row AdminRunRow
		if err := rows.Scan(&row.ID, &row.Title, &row.StartsAt, &row.HostUserID, &row.HostUsername,
			&row.City, &row.Municipality, &row.ParticipantsCount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpcomingRunRow is a joined run shown on the dashboard.
type UpcomingRunRow struct {
	ID           uint64
	Title        string
	StartsAt     time.Time
	City         string
	Municipality string
}

// UpcomingForUser returns up to limit runs the user joined that start at or
// after now, soonest first.
func (r *RunRepo) UpcomingForUser(ctx context.Context, userID uint64, now time.Time, limit int) ([]UpcomingRunRow, error) {
	const q = `SELECT r.id, r.title, r.starts_at, l.city, l.municipality
	           FROM run_users m
	           JOIN runs r ON r.id = m.run_id
	           JOIN locations l ON l.id = r.location_id
	           WHERE m.user_id = ? AND r.starts_at >= ?
	           ORDER BY r.starts_at ASC, r.id ASC
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, userID, now.UTC().Truncate(time.Second), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UpcomingRunRow
	for rows.Next() {
		var row UpcomingRunRow
		if err := rows.Scan(&row.ID, &row.Title, &row.StartsAt, &row.City, &row.Municipality); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
