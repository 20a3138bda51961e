package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot() *cobra.Command {
	root := &cobra.Command{Use: "schemareg", SilenceErrors: true, SilenceUsage: true}
	ConfigureRoot(root)
	root.AddCommand(IngestCmd(), RelinkCmd(), TreeCmd(), ShowCmd(), VersionsCmd(), SearchCmd(),
		EditRelationsCmd(), EditValidityCmd(), AuditCmd(), DoctorCmd(), MigrateCmd(), ConfigCmd(), VersionCmd())
	return root
}

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	root := newTestRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", dbPath, "--actor", "tester", "--log-level", "error"}, args...))
	err := root.Execute()
	if err != nil {
		_ = Shutdown()
	}
	return out.String(), err
}

func writeSchema(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestCommands_EndToEnd(t *testing.T) {
	color.NoColor = true
	work := t.TempDir()
	chdir(t, work)
	dbPath := filepath.Join(work, "registry.db")

	docs := filepath.Join(work, "schemas")
	require.NoError(t, os.Mkdir(docs, 0o755))
	writeSchema(t, docs, "p.json", `{"$id": "/p", "title": "Parent", "x-cr-version": "1.0", "x-cr-subschema": "/p/*"}`)
	writeSchema(t, docs, "a.yaml", "$id: /p/a\ntitle: Address\nx-cr-version: \"1.0\"\n")

	out, err := run(t, dbPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite database at migration")

	out, err = run(t, dbPath, "ingest", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted 2 of 2")

	out, err = run(t, dbPath, "tree")
	require.NoError(t, err)
	assert.Contains(t, out, "/p  Parent")
	assert.Contains(t, out, "sub /p/a  Address")

	out, err = run(t, dbPath, "show", "/p/a")
	require.NoError(t, err)
	assert.Contains(t, out, "Address")

	out, err = run(t, dbPath, "search", "addr")
	require.NoError(t, err)
	assert.Contains(t, out, "/p/a")

	out, err = run(t, dbPath, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "no problems found")

	out, err = run(t, dbPath, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "tester")
}

func TestIngest_RejectedDocumentFailsCommand(t *testing.T) {
	color.NoColor = true
	work := t.TempDir()
	chdir(t, work)

	writeSchema(t, work, "bad.json", `{"$id": "/bad", "x-cr-version": "1.0"`)

	out, err := run(t, filepath.Join(work, "registry.db"), "ingest", filepath.Join(work, "bad.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 document(s) rejected")
	assert.Contains(t, out, "invalid JSON")
}

func TestConfigShow(t *testing.T) {
	work := t.TempDir()
	chdir(t, work)

	out, err := run(t, filepath.Join(work, "registry.db"), "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: sqlite")
	assert.Contains(t, out, "registry.db")
}

func TestParsePrimaryID(t *testing.T) {
	pid, err := parsePrimaryID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), pid)

	for _, bad := range []string{"", "0", "-3", "x"} {
		_, err := parsePrimaryID(bad)
		assert.Error(t, err, bad)
	}
}

func TestEditRelations_InvalidIDs(t *testing.T) {
	work := t.TempDir()
	chdir(t, work)

	_, err := run(t, filepath.Join(work, "registry.db"), "edit-relations", "1", "--sub", "a,b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--sub")
}

func TestVersionCmd_SkipsConfig(t *testing.T) {
	work := t.TempDir()
	chdir(t, work)
	require.NoError(t, os.WriteFile(filepath.Join(work, "schemareg.yaml"), []byte("database:\n  driver: oracle\n"), 0o644))

	out, err := run(t, filepath.Join(work, "registry.db"), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "schemareg dev")

	_, err = run(t, filepath.Join(work, "registry.db"), "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database.driver")
}
