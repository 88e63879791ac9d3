package database

import (
	"embed"
	"errors"
	"path"

	"github.com/golang-migrate/migrate/v4"
	// Register the migrate drivers for both supported stores.
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"

	"github.com/iliyamo/runly/internal/config"
)

//go:embed migrations/mysql/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations for one driver.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator builds a migrator for cfg's driver. It opens its own
// connection; call Close when done.
func NewMigrator(cfg config.Config) (*Migrator, error) {
	src, err := iofs.New(migrationsFS, path.Join("migrations", cfg.DBDriver))
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("driver", cfg.DBDriver).Wrap(err)
	}
	target, err := migrationURL(cfg)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, target)
	if err != nil {
		_ = src.Close()
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("driver", cfg.DBDriver).Wrap(err)
	}
	return &Migrator{m: m}, nil
}

func migrationURL(cfg config.Config) (string, error) {
	switch cfg.DBDriver {
	case "mysql":
		// The migration files hold several statements each.
		return "mysql://" + MySQLDSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName) + "&multiStatements=true", nil
	case "sqlite3":
		return "sqlite3://" + cfg.DBPath, nil
	}
	return "", oops.Code("DB_DRIVER_UNSUPPORTED").With("driver", cfg.DBDriver).Errorf("unsupported driver")
}

// Up applies all pending migrations. No pending migrations is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back all migrations.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Version returns the applied version. A fresh database reports 0.
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return v, dirty, nil
}

// Close releases the migration source and database handles.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}

// MigrateUp is a convenience used at startup and in tests.
func MigrateUp(cfg config.Config) error {
	m, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
