// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when the requested row does not exist. Handlers
// translate it into a 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness rule that has
// no more specific sentinel.
var ErrConflict = errors.New("conflict")

// ErrEmailExists and ErrUsernameExists report which unique user column a
// write collided with.
var (
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")
)

// ErrRatingExists is returned when a participant rates the same run twice.
var ErrRatingExists = errors.New("rating already exists")

// querier is satisfied by both *sql.DB and *sql.Tx so the same statements
// can run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// isDuplicate reports whether err is a unique-constraint violation on
// MySQL (error 1062) or SQLite.
func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// isMissingParent reports whether err is a foreign-key violation caused by
// a referenced row that no longer exists (MySQL 1452, SQLite FK).
func isMissingParent(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1452
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// duplicateOn reports whether a duplicate error names the given unique
// column. MySQL reports the key name (uq_users_email), SQLite the
// qualified column (users.email).
func duplicateOn(err error, table, column string) bool {
	if !isDuplicate(err) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "uq_"+table+"_"+column) ||
		strings.Contains(msg, table+"."+column)
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// nowUTC is the timestamp written into created/updated columns. Second
// precision keeps DATETIME values comparable across drivers.
func nowUTC() time.Time { return time.Now().UTC().Truncate(time.Second) }

// lastID returns the auto-increment id of an insert.
func lastID(res sql.Result) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// inList returns "?,?,?" for n ids and the matching argument slice.
func inList(ids []uint64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

// requireRow turns an UPDATE that matched nothing into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
