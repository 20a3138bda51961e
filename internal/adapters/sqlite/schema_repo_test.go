package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/schemareg/internal/ports/secondary"
)

func TestSchemaRepository_RootRecord(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	root, err := store.GetRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), root.SchemaID)
	assert.Equal(t, "/", root.IDString)
	assert.False(t, root.Hidden)
	assert.Empty(t, root.Subschema)
	assert.NotNil(t, root.Subschema)

	maxID, err := store.MaxSchemaID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), maxID)
}

func TestSchemaRepository_InsertAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	until := day(t, "2030-12-31")
	pid, err := store.Insert(ctx, &secondary.SchemaRecord{
		SchemaID:         1,
		IDString:         "/root/a",
		Title:            "A",
		Subtitle:         "first",
		Document:         []byte(`{"$id":"/root/a"}`),
		Unique:           true,
		VersionMajor:     1,
		VersionMinor:     2,
		ValidFrom:        day(t, "2024-01-01"),
		ValidUntil:       &until,
		Subschema:        []int64{4, 2},
		SubschemaDefault: []int64{4, 2},
		BaseSchema:       7,
	})
	require.NoError(t, err)

	got, err := store.GetByPrimaryID(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.SchemaID)
	assert.Equal(t, "/root/a", got.IDString)
	assert.Equal(t, "first", got.Subtitle)
	assert.JSONEq(t, `{"$id":"/root/a"}`, string(got.Document))
	assert.True(t, got.Unique)
	assert.Equal(t, 1, got.VersionMajor)
	assert.Equal(t, 2, got.VersionMinor)
	assert.Equal(t, day(t, "2024-01-01"), got.ValidFrom)
	require.NotNil(t, got.ValidUntil)
	assert.Equal(t, until, *got.ValidUntil)
	assert.Equal(t, []int64{4, 2}, got.Subschema)
	assert.Equal(t, []int64{}, got.ChildSchema)
	assert.Equal(t, int64(7), got.BaseSchema)
	assert.False(t, got.CreatedAt.IsZero())

	valid, err := store.GetValid(ctx, "/root/a")
	require.NoError(t, err)
	assert.Equal(t, pid, valid.PrimaryID)

	maxID, err := store.MaxSchemaID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), maxID)
}

func TestSchemaRepository_NotFound(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.GetByPrimaryID(ctx, 999)
	assert.True(t, secondary.IsNotFound(err))

	_, err = store.GetValid(ctx, "/missing")
	assert.True(t, secondary.IsNotFound(err))

	err = store.CloseValidity(ctx, 999, day(t, "2024-01-01"))
	assert.True(t, secondary.IsNotFound(err))
}

func TestSchemaRepository_LineageOrderAndHide(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	v10 := seedSchema(t, store, 1, "/a", 1, 0, "1970-01-01")
	v12 := seedSchema(t, store, 1, "/a", 1, 2, "2024-01-01")
	v11 := seedSchema(t, store, 1, "/a", 1, 1, "2023-01-01")
	seedSchema(t, store, 2, "/b", 1, 0, "1970-01-01")

	rows, err := store.ListLineage(ctx, "/a")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{v12, v11, v10}, []int64{rows[0].PrimaryID, rows[1].PrimaryID, rows[2].PrimaryID})

	require.NoError(t, store.HideLineage(ctx, 1))
	rows, err = store.ListLineage(ctx, "/a")
	require.NoError(t, err)
	for _, r := range rows {
		assert.True(t, r.Hidden)
	}

	valid, err := store.ListValid(ctx)
	require.NoError(t, err)
	var ids []string
	for _, r := range valid {
		ids = append(ids, r.IDString)
	}
	assert.Equal(t, []string{"/", "/b"}, ids)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSchemaRepository_ValidityAndRelations(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	pid := seedSchema(t, store, 1, "/a", 1, 0, "1970-01-01")

	require.NoError(t, store.CloseValidity(ctx, pid, day(t, "2023-12-31")))
	got, err := store.GetByPrimaryID(ctx, pid)
	require.NoError(t, err)
	require.NotNil(t, got.ValidUntil)
	assert.Equal(t, "2023-12-31", got.ValidUntil.Format("2006-01-02"))

	require.NoError(t, store.UpdateValidity(ctx, pid, day(t, "2020-01-01"), nil))
	require.NoError(t, store.SetSubschema(ctx, pid, []int64{9}, []int64{2, 3}))
	require.NoError(t, store.SetChildSchema(ctx, pid, []int64{4}, []int64{4}))
	require.NoError(t, store.SetInheritance(ctx, pid, []int64{5, 6}, 8))

	got, err = store.GetByPrimaryID(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, day(t, "2020-01-01"), got.ValidFrom)
	assert.Nil(t, got.ValidUntil)
	assert.Equal(t, []int64{9}, got.Subschema)
	assert.Equal(t, []int64{2, 3}, got.SubschemaDefault)
	assert.Equal(t, []int64{4}, got.ChildSchemaDefault)
	assert.Equal(t, []int64{5, 6}, got.InheritSchema)
	assert.Equal(t, []int64{5, 6}, got.InheritSchemaDefault)
	assert.Equal(t, int64(8), got.BaseSchema)

	require.NoError(t, store.SetEditableRelations(ctx, pid, nil, []int64{1}, nil))
	got, err = store.GetByPrimaryID(ctx, pid)
	require.NoError(t, err)
	assert.Empty(t, got.Subschema)
	assert.Equal(t, []int64{2, 3}, got.SubschemaDefault, "defaults untouched")
	assert.Equal(t, []int64{1}, got.ChildSchema)
	assert.Empty(t, got.InheritSchema)
	assert.Equal(t, []int64{5, 6}, got.InheritSchemaDefault)
}

func TestSchemaRepository_Search(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seedSchema(t, store, 1, "/schema/CC/staging", 1, 0, "1970-01-01")
	seedSchema(t, store, 2, "/schema/CC/therapy", 1, 0, "1970-01-01")
	seedSchema(t, store, 3, "/schema/old_staging", 1, 0, "1970-01-01")
	require.NoError(t, store.HideLineage(ctx, 3))

	require.NoError(t, store.RebuildSearchIndex(ctx))

	hits, err := store.Search(ctx, "STAGING", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/schema/CC/staging", hits[0].IDString)

	hits, err = store.Search(ctx, "cc/", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	// LIKE wildcards in the term are literal.
	hits, err = store.Search(ctx, "%", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Rebuilding twice does not duplicate entries.
	require.NoError(t, store.RebuildSearchIndex(ctx))
	hits, err = store.Search(ctx, "schema", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSchemaRepository_Audit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	pid := seedSchema(t, store, 1, "/a", 1, 0, "1970-01-01")

	require.NoError(t, store.AppendAudit(ctx, &secondary.AuditRecord{BatchID: "b1", Actor: "alice", PrimaryID: pid, Action: "insert"}))
	entry := &secondary.AuditRecord{BatchID: "b2", PrimaryID: pid, Action: "update", FieldName: "valid_until", OldValue: "", NewValue: "2024-01-01"}
	require.NoError(t, store.AppendAudit(ctx, entry))
	assert.NotZero(t, entry.ID)

	all, err := store.ListAudit(ctx, secondary.AuditFilters{PrimaryID: pid})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "update", all[0].Action, "newest first")

	batch, err := store.ListAudit(ctx, secondary.AuditFilters{BatchID: "b1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "alice", batch[0].Actor)

	err = store.AppendAudit(ctx, &secondary.AuditRecord{PrimaryID: pid, Action: "delete"})
	assert.Error(t, err, "action is constrained")
}

func TestSchemaStore_TransactionRollback(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	seedSchema(t, tx, 1, "/a", 1, 0, "1970-01-01")

	inTx, err := tx.GetValid(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, "/a", inTx.IDString)

	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is harmless")

	_, err = store.GetValid(ctx, "/a")
	assert.True(t, secondary.IsNotFound(err))
}

func TestSchemaStore_TransactionCommit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	seedSchema(t, tx, 1, "/a", 1, 0, "1970-01-01")
	require.NoError(t, tx.Commit())

	got, err := store.GetValid(ctx, "/a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.SchemaID)
}
