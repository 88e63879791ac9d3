package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/runly/internal/model"
)

// LocationRepo finds or creates (city, municipality) locations. Locations
// are never deleted.
type LocationRepo struct {
	db *sql.DB
}

func NewLocationRepo(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

// GetByID fetches a location.
func (r *LocationRepo) GetByID(ctx context.Context, id uint64) (*model.Location, error) {
	var (
		l        model.Location
		lat, lng sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, city, municipality, lat, lng FROM locations WHERE id = ?", id).
		Scan(&l.ID, &l.City, &l.Municipality, &lat, &lng)
	if err != nil {
		return nil, notFound(err)
	}
	l.Lat, l.Lng = floatPtr(lat), floatPtr(lng)
	return &l, nil
}

// Resolve returns the id of the location for (city, municipality),
// creating it when missing. When both lat and lng are given, an existing
// location gets its coordinates refreshed.
func (r *LocationRepo) Resolve(ctx context.Context, city, municipality string, lat, lng *float64) (uint64, error) {
	return resolveLocation(ctx, r.db, city, municipality, lat, lng)
}

func resolveLocation(ctx context.Context, q querier, city, municipality string, lat, lng *float64) (uint64, error) {
	const qFind = "SELECT id FROM locations WHERE city = ? AND municipality = ?"
	var id uint64
	err := q.QueryRowContext(ctx, qFind, city, municipality).Scan(&id)
	switch {
	case err == nil:
		if lat != nil && lng != nil {
			if _, err := q.ExecContext(ctx, "UPDATE locations SET lat = ?, lng = ? WHERE id = ?", *lat, *lng, id); err != nil {
				return 0, err
			}
		}
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}

	res, err := q.ExecContext(ctx,
		"INSERT INTO locations (city, municipality, lat, lng) VALUES (?, ?, ?, ?)",
		city, municipality, nullFloat(lat), nullFloat(lng))
	if err != nil {
		// Another request created it first.
		if isDuplicate(err) {
			err = q.QueryRowContext(ctx, qFind, city, municipality).Scan(&id)
			return id, err
		}
		return 0, err
	}
	return lastID(res)
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
