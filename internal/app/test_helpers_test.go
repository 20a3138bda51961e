package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/schemareg/internal/core/lineage"
	"github.com/example/schemareg/internal/ports/secondary"
)

// Ensure the fakes implement the interfaces
var (
	_ secondary.SchemaStore = (*fakeStore)(nil)
	_ secondary.SchemaTx    = (*fakeTx)(nil)
)

// fakeState is the full content of an in-memory store.
type fakeState struct {
	rows      []*secondary.SchemaRecord
	search    []*secondary.SearchHit
	audit     []*secondary.AuditRecord
	nextPID   int64
	nextAudit int64
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{nextPID: s.nextPID, nextAudit: s.nextAudit}
	for _, r := range s.rows {
		c.rows = append(c.rows, copyRecord(r))
	}
	for _, h := range s.search {
		hit := *h
		c.search = append(c.search, &hit)
	}
	for _, a := range s.audit {
		entry := *a
		c.audit = append(c.audit, &entry)
	}
	return c
}

// fakeRepo implements secondary.SchemaRepository over a fakeState.
type fakeRepo struct {
	st         *fakeState
	failInsert error
}

// fakeStore is an in-memory SchemaStore. Transactions work on a copy of the
// state that replaces it on commit.
type fakeStore struct {
	*fakeRepo
	commits   int
	rollbacks int
}

func newFakeStore() *fakeStore {
	root := &secondary.SchemaRecord{
		PrimaryID:            1,
		SchemaID:             0,
		IDString:             "/",
		Title:                "Root",
		Document:             []byte(`{}`),
		ValidFrom:            lineage.Epoch,
		Subschema:            []int64{},
		SubschemaDefault:     []int64{},
		ChildSchema:          []int64{},
		ChildSchemaDefault:   []int64{},
		InheritSchema:        []int64{},
		InheritSchemaDefault: []int64{},
	}
	return &fakeStore{fakeRepo: &fakeRepo{st: &fakeState{rows: []*secondary.SchemaRecord{root}, nextPID: 2, nextAudit: 1}}}
}

func (s *fakeStore) Begin(ctx context.Context) (secondary.SchemaTx, error) {
	return &fakeTx{fakeRepo: &fakeRepo{st: s.st.clone(), failInsert: s.failInsert}, store: s}, nil
}

type fakeTx struct {
	*fakeRepo
	store *fakeStore
	done  bool
}

func (t *fakeTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.store.st = t.st
	t.store.commits++
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.rollbacks++
	return nil
}

func copyRecord(r *secondary.SchemaRecord) *secondary.SchemaRecord {
	c := *r
	c.Document = append([]byte(nil), r.Document...)
	if r.ValidUntil != nil {
		u := *r.ValidUntil
		c.ValidUntil = &u
	}
	c.Subschema = copyIDs(r.Subschema)
	c.SubschemaDefault = copyIDs(r.SubschemaDefault)
	c.ChildSchema = copyIDs(r.ChildSchema)
	c.ChildSchemaDefault = copyIDs(r.ChildSchemaDefault)
	c.InheritSchema = copyIDs(r.InheritSchema)
	c.InheritSchemaDefault = copyIDs(r.InheritSchemaDefault)
	return &c
}

func copyIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

func (f *fakeRepo) find(primaryID int64) (*secondary.SchemaRecord, error) {
	for _, r := range f.st.rows {
		if r.PrimaryID == primaryID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("schema row %d: %w", primaryID, secondary.ErrNotFound)
}

func (f *fakeRepo) selectRows(keep func(*secondary.SchemaRecord) bool) []*secondary.SchemaRecord {
	var out []*secondary.SchemaRecord
	for _, r := range f.st.rows {
		if keep(r) {
			out = append(out, copyRecord(r))
		}
	}
	return out
}

func (f *fakeRepo) ListLineage(ctx context.Context, idString string) ([]*secondary.SchemaRecord, error) {
	rows := f.selectRows(func(r *secondary.SchemaRecord) bool { return r.IDString == idString })
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].VersionMajor != rows[j].VersionMajor {
			return rows[i].VersionMajor > rows[j].VersionMajor
		}
		if rows[i].VersionMinor != rows[j].VersionMinor {
			return rows[i].VersionMinor > rows[j].VersionMinor
		}
		return rows[i].PrimaryID > rows[j].PrimaryID
	})
	return rows, nil
}

func (f *fakeRepo) MaxSchemaID(ctx context.Context) (int64, error) {
	var maxID int64
	for _, r := range f.st.rows {
		if r.SchemaID > maxID {
			maxID = r.SchemaID
		}
	}
	return maxID, nil
}

func (f *fakeRepo) GetByPrimaryID(ctx context.Context, primaryID int64) (*secondary.SchemaRecord, error) {
	r, err := f.find(primaryID)
	if err != nil {
		return nil, err
	}
	return copyRecord(r), nil
}

func (f *fakeRepo) GetValid(ctx context.Context, idString string) (*secondary.SchemaRecord, error) {
	rows := f.selectRows(func(r *secondary.SchemaRecord) bool { return r.IDString == idString && !r.Hidden })
	if len(rows) == 0 {
		return nil, fmt.Errorf("schema %s: %w", idString, secondary.ErrNotFound)
	}
	return rows[0], nil
}

func (f *fakeRepo) ListValid(ctx context.Context) ([]*secondary.SchemaRecord, error) {
	rows := f.selectRows(func(r *secondary.SchemaRecord) bool { return !r.Hidden })
	sort.Slice(rows, func(i, j int) bool { return rows[i].IDString < rows[j].IDString })
	return rows, nil
}

func (f *fakeRepo) ListAll(ctx context.Context) ([]*secondary.SchemaRecord, error) {
	rows := f.selectRows(func(*secondary.SchemaRecord) bool { return true })
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].IDString != rows[j].IDString {
			return rows[i].IDString < rows[j].IDString
		}
		return rows[i].PrimaryID < rows[j].PrimaryID
	})
	return rows, nil
}

func (f *fakeRepo) GetRoot(ctx context.Context) (*secondary.SchemaRecord, error) {
	rows := f.selectRows(func(r *secondary.SchemaRecord) bool { return r.SchemaID == 0 })
	if len(rows) == 0 {
		return nil, fmt.Errorf("root schema: %w", secondary.ErrNotFound)
	}
	return rows[0], nil
}

func (f *fakeRepo) Insert(ctx context.Context, record *secondary.SchemaRecord) (int64, error) {
	if f.failInsert != nil {
		return 0, f.failInsert
	}
	r := copyRecord(record)
	r.PrimaryID = f.st.nextPID
	r.CreatedAt = time.Now()
	f.st.nextPID++
	f.st.rows = append(f.st.rows, r)
	return r.PrimaryID, nil
}

func (f *fakeRepo) HideLineage(ctx context.Context, schemaID int64) error {
	for _, r := range f.st.rows {
		if r.SchemaID == schemaID {
			r.Hidden = true
		}
	}
	return nil
}

func (f *fakeRepo) CloseValidity(ctx context.Context, primaryID int64, until time.Time) error {
	r, err := f.find(primaryID)
	if err != nil {
		return err
	}
	r.ValidUntil = &until
	return nil
}

func (f *fakeRepo) UpdateValidity(ctx context.Context, primaryID int64, from time.Time, until *time.Time) error {
	r, err := f.find(primaryID)
	if err != nil {
		return err
	}
	r.ValidFrom = from
	r.ValidUntil = until
	return nil
}

func (f *fakeRepo) SetSubschema(ctx context.Context, primaryID int64, editable, computed []int64) error {
	r, err := f.find(primaryID)
	if err != nil {
		return err
	}
	r.Subschema, r.SubschemaDefault = copyIDs(editable), copyIDs(computed)
	return nil
}

func (f *fakeRepo) SetChildSchema(ctx context.Context, primaryID int64, editable, computed []int64) error {
	r, err := f.find(primaryID)
	if err != nil {
		return err
	}
	r.ChildSchema, r.ChildSchemaDefault = copyIDs(editable), copyIDs(computed)
	return nil
}

func (f *fakeRepo) SetInheritance(ctx context.Context, primaryID int64, inherit []int64, base int64) error {
	r, err := f.find(primaryID)
	if err != nil {
		return err
	}
	r.InheritSchema, r.InheritSchemaDefault, r.BaseSchema = copyIDs(inherit), copyIDs(inherit), base
	return nil
}

func (f *fakeRepo) SetEditableRelations(ctx context.Context, primaryID int64, sub, child, inherit []int64) error {
	r, err := f.find(primaryID)
	if err != nil {
		return err
	}
	r.Subschema, r.ChildSchema, r.InheritSchema = copyIDs(sub), copyIDs(child), copyIDs(inherit)
	return nil
}

func (f *fakeRepo) RebuildSearchIndex(ctx context.Context) error {
	f.st.search = nil
	for _, r := range f.st.rows {
		if r.Hidden || r.SchemaID == 0 {
			continue
		}
		f.st.search = append(f.st.search, &secondary.SearchHit{
			SchemaID:  r.SchemaID,
			PrimaryID: r.PrimaryID,
			IDString:  r.IDString,
			Title:     r.Title,
			Subtitle:  r.Subtitle,
		})
	}
	return nil
}

func (f *fakeRepo) Search(ctx context.Context, term string, limit int) ([]*secondary.SearchHit, error) {
	term = strings.ToLower(term)
	var hits []*secondary.SearchHit
	for _, h := range f.st.search {
		text := strings.ToLower(h.IDString + " " + h.Title + " " + h.Subtitle)
		if strings.Contains(text, term) {
			hit := *h
			hits = append(hits, &hit)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].IDString < hits[j].IDString })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeRepo) AppendAudit(ctx context.Context, record *secondary.AuditRecord) error {
	entry := *record
	entry.ID = f.st.nextAudit
	entry.CreatedAt = time.Now()
	f.st.nextAudit++
	f.st.audit = append(f.st.audit, &entry)
	return nil
}

func (f *fakeRepo) ListAudit(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditRecord, error) {
	var out []*secondary.AuditRecord
	for i := len(f.st.audit) - 1; i >= 0; i-- {
		a := f.st.audit[i]
		if filters.PrimaryID != 0 && a.PrimaryID != filters.PrimaryID {
			continue
		}
		if filters.BatchID != "" && a.BatchID != filters.BatchID {
			continue
		}
		entry := *a
		out = append(out, &entry)
		if filters.Limit > 0 && len(out) == filters.Limit {
			break
		}
	}
	return out, nil
}
