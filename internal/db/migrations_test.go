package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_SQLite(t *testing.T) {
	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "reg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	st, err := Migrate(conn, DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(2), st.Version)
	assert.False(t, st.Dirty)

	// Second run is a no-op.
	st, err = Migrate(conn, DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(2), st.Version)

	var id int64
	var idString string
	require.NoError(t, conn.QueryRow("SELECT schema_id, schema_id_string FROM schemas").Scan(&id, &idString))
	assert.Equal(t, int64(0), id)
	assert.Equal(t, "/", idString)

	var tables int
	require.NoError(t, conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('schema_search', 'schema_audit')",
	).Scan(&tables))
	assert.Equal(t, 2, tables)
}

func TestStatus_Unmigrated(t *testing.T) {
	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "reg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	st, err := Status(conn, DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(0), st.Version)
}

func TestMigrate_UnknownDriver(t *testing.T) {
	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "reg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = Migrate(conn, "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported database driver "oracle"`)
}
