package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrations are the single source of truth for the database schema.
// Tests migrate a scratch database through them instead of declaring tables.
//
//go:embed migrations
var migrationFS embed.FS

// MigrationStatus describes the applied migration level.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// Migrate applies every pending migration for driver to conn.
// The caller keeps ownership of conn.
func Migrate(conn *sql.DB, driver string) (MigrationStatus, error) {
	m, release, err := newMigrator(conn, driver)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return status(m)
}

// Status reports the applied migration level without changing anything.
func Status(conn *sql.DB, driver string) (MigrationStatus, error) {
	m, release, err := newMigrator(conn, driver)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer release()
	return status(m)
}

func status(m *migrate.Migrate) (MigrationStatus, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}

// newMigrator wires the embedded source to conn. The release func frees
// what the migrator holds without closing conn, which belongs to the caller:
// the sqlite3 driver closes its *sql.DB on Close, the pgx driver only its
// dedicated connection.
func newMigrator(conn *sql.DB, driver string) (*migrate.Migrate, func(), error) {
	var (
		dir       string
		dbName    string
		target    database.Driver
		closeable bool
		err       error
	)

	switch driver {
	case DriverSQLite:
		dir, dbName = "migrations/sqlite", "sqlite3"
		target, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	case DriverPostgres:
		dir, dbName, closeable = "migrations/postgres", "pgx5", true
		target, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, target)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	release := func() { _ = src.Close() }
	if closeable {
		release = func() { _, _ = m.Close() }
	}
	return m, release, nil
}
