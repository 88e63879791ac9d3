package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/runly/internal/model"
)

const userColumns = "id,email,username,password_hash,avatar_url,age,gender,fitness_level,pace_min_per_km,role,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u and fills its ID and timestamps. A collision on email
// or username returns ErrEmailExists or ErrUsernameExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	now := nowUTC()
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, username, password_hash, avatar_url, age, gender, fitness_level, pace_min_per_km, role, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.Email, u.Username, u.PasswordHash, nullString(u.AvatarURL), u.Age, u.Gender, u.FitnessLevel, u.PaceMinPerKm, string(u.Role), now, now)
	if err != nil {
		return userWriteErr(err)
	}
	if u.ID, err = lastID(res); err != nil {
		return err
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// Exists reports whether a user row with id exists.
func (r *UserRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// UsernameTaken reports whether another user (not exceptID) already uses
// username.
func (r *UserRepo) UsernameTaken(ctx context.Context, username string, exceptID uint64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE username=? AND id<>? LIMIT 1", username, exceptID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// UpdateProfile writes the editable profile fields of u. It returns
// ErrUsernameExists on a collision.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	now := nowUTC()
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET username=?, avatar_url=?, age=?, gender=?, fitness_level=?, pace_min_per_km=?, updated_at=?
		 WHERE id=?`,
		u.Username, nullString(u.AvatarURL), u.Age, u.Gender, u.FitnessLevel, u.PaceMinPerKm, now, u.ID)
	if err != nil {
		return userWriteErr(err)
	}
	u.UpdatedAt = now
	return nil
}

// UpdatePasswordHash replaces the stored hash, used when upgrading legacy
// hashes after a successful login.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, nowUTC(), id)
	return err
}

// SetRole changes a user's role.
func (r *UserRepo) SetRole(ctx context.Context, id uint64, role model.Role) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, updated_at=? WHERE id=?", string(role), nowUTC(), id)
	return err
}

// AdminUserRow is one line of the admin user listing.
type AdminUserRow struct {
	ID         uint64
	Email      string
	Username   string
	Role       model.Role
	CreatedAt  time.Time
	HostedRuns int
	JoinedRuns int
}

// ListWithCounts returns all users newest first with the number of runs
// they host and have joined.
func (r *UserRepo) ListWithCounts(ctx context.Context) ([]AdminUserRow, error) {
	const q = `SELECT u.id, u.email, u.username, u.role, u.created_at,
	                  (SELECT COUNT(*) FROM runs h WHERE h.host_user_id = u.id),
	                  (SELECT COUNT(*) FROM run_users m WHERE m.user_id = u.id)
	           FROM users u
	           ORDER BY u.created_at DESC, u.id DESC`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdminUserRow
	for rows.Next() {
		var row AdminUserRow
		var role string
		if err := rows.Scan(&row.ID, &row.Email, &row.Username, &role, &row.CreatedAt, &row.HostedRuns, &row.JoinedRuns); err != nil {
			return nil, err
		}
		row.Role = model.Role(role)
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u      model.User
		avatar sql.NullString
		role   string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &avatar, &u.Age, &u.Gender,
		&u.FitnessLevel, &u.PaceMinPerKm, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if avatar.Valid {
		u.AvatarURL = &avatar.String
	}
	u.Role = model.Role(role)
	return &u, nil
}

func userWriteErr(err error) error {
	switch {
	case duplicateOn(err, "users", "email"):
		return ErrEmailExists
	case duplicateOn(err, "users", "username"):
		return ErrUsernameExists
	case isDuplicate(err):
		return ErrConflict
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
