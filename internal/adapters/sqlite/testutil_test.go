// Package sqlite_test contains integration tests for SQLite repositories.
//
// Every test database is migrated through the embedded migrations, so tests
// always run against the authoritative schema.
package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/schemareg/internal/adapters/sqlite"
	"github.com/example/schemareg/internal/core/lineage"
	"github.com/example/schemareg/internal/db"
	"github.com/example/schemareg/internal/ports/secondary"
)

// setupTestDB creates a migrated database file in a temp dir.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })

	_, err = db.Migrate(testDB, db.DriverSQLite)
	require.NoError(t, err)

	return testDB
}

func setupStore(t *testing.T) *sqlite.SchemaStore {
	t.Helper()
	return sqlite.NewSchemaStore(setupTestDB(t))
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := lineage.ParseDate(s)
	require.NoError(t, err)
	return d
}

// seedSchema inserts a visible version and returns its primary id.
func seedSchema(t *testing.T, repo secondary.SchemaRepository, schemaID int64, idString string, major, minor int, from string) int64 {
	t.Helper()
	id, err := repo.Insert(context.Background(), &secondary.SchemaRecord{
		SchemaID:     schemaID,
		IDString:     idString,
		Title:        "Title " + idString,
		Document:     []byte(`{"$id":"` + idString + `"}`),
		VersionMajor: major,
		VersionMinor: minor,
		ValidFrom:    day(t, from),
	})
	require.NoError(t, err)
	return id
}
