// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/schemareg/internal/core/lineage"
	"github.com/example/schemareg/internal/ports/secondary"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const schemaColumns = `schema_primary_id, schema_id, schema_id_string, title, subtitle, document_schema,
	uniqueness, hidden, version_major, version_minor, valid_from, valid_until,
	subschema, subschema_default, child_schema, child_schema_default,
	inherit_schema, inherit_schema_default, base_schema, created_at`

// SchemaRepository implements secondary.SchemaRepository with SQLite.
type SchemaRepository struct {
	db querier
}

// NewSchemaRepository creates a repository reading and writing through db.
func NewSchemaRepository(db *sql.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// ListLineage retrieves every row of a lineage, newest version first.
func (r *SchemaRepository) ListLineage(ctx context.Context, idString string) ([]*secondary.SchemaRecord, error) {
	return r.list(ctx, "lineage",
		"SELECT "+schemaColumns+" FROM schemas WHERE schema_id_string = ? ORDER BY version_major DESC, version_minor DESC, schema_primary_id DESC",
		idString)
}

// MaxSchemaID returns the highest schema_id in the store.
func (r *SchemaRepository) MaxSchemaID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(schema_id), 0) FROM schemas").Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get max schema id: %w", err)
	}
	return id, nil
}

// GetByPrimaryID retrieves one row by its surrogate key.
func (r *SchemaRepository) GetByPrimaryID(ctx context.Context, primaryID int64) (*secondary.SchemaRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+schemaColumns+" FROM schemas WHERE schema_primary_id = ?", primaryID)
	return r.get(row, fmt.Sprintf("schema row %d", primaryID))
}

// GetValid retrieves the non-hidden row of a lineage.
func (r *SchemaRepository) GetValid(ctx context.Context, idString string) (*secondary.SchemaRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+schemaColumns+" FROM schemas WHERE schema_id_string = ? AND hidden = 0 ORDER BY version_major DESC, version_minor DESC LIMIT 1",
		idString)
	return r.get(row, fmt.Sprintf("schema %s", idString))
}

// ListValid retrieves every non-hidden row, ordered by id string.
func (r *SchemaRepository) ListValid(ctx context.Context) ([]*secondary.SchemaRecord, error) {
	return r.list(ctx, "valid schemas",
		"SELECT "+schemaColumns+" FROM schemas WHERE hidden = 0 ORDER BY schema_id_string, schema_primary_id")
}

// ListAll retrieves every row, historical versions included.
func (r *SchemaRepository) ListAll(ctx context.Context) ([]*secondary.SchemaRecord, error) {
	return r.list(ctx, "schemas",
		"SELECT "+schemaColumns+" FROM schemas ORDER BY schema_id_string, version_major, version_minor, schema_primary_id")
}

// GetRoot retrieves the synthetic root record.
func (r *SchemaRepository) GetRoot(ctx context.Context) (*secondary.SchemaRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+schemaColumns+" FROM schemas WHERE schema_id = 0 ORDER BY schema_primary_id LIMIT 1")
	return r.get(row, "root schema")
}

// Insert persists a new version and returns its primary id.
func (r *SchemaRepository) Insert(ctx context.Context, rec *secondary.SchemaRecord) (int64, error) {
	var validUntil sql.NullString
	if rec.ValidUntil != nil {
		validUntil = sql.NullString{String: rec.ValidUntil.Format(lineage.DateLayout), Valid: true}
	}
	doc := string(rec.Document)
	if doc == "" {
		doc = "{}"
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO schemas (schema_id, schema_id_string, title, subtitle, document_schema, uniqueness, hidden,
			version_major, version_minor, valid_from, valid_until,
			subschema, subschema_default, child_schema, child_schema_default,
			inherit_schema, inherit_schema_default, base_schema)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SchemaID, rec.IDString, rec.Title, rec.Subtitle, doc, rec.Unique, rec.Hidden,
		rec.VersionMajor, rec.VersionMinor, rec.ValidFrom.Format(lineage.DateLayout), validUntil,
		encodeIDs(rec.Subschema), encodeIDs(rec.SubschemaDefault),
		encodeIDs(rec.ChildSchema), encodeIDs(rec.ChildSchemaDefault),
		encodeIDs(rec.InheritSchema), encodeIDs(rec.InheritSchemaDefault), rec.BaseSchema,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert schema: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted schema id: %w", err)
	}
	return id, nil
}

// HideLineage marks every row of a lineage hidden.
func (r *SchemaRepository) HideLineage(ctx context.Context, schemaID int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE schemas SET hidden = 1 WHERE schema_id = ?", schemaID); err != nil {
		return fmt.Errorf("failed to hide lineage: %w", err)
	}
	return nil
}

// CloseValidity sets valid_until of one row.
func (r *SchemaRepository) CloseValidity(ctx context.Context, primaryID int64, until time.Time) error {
	return r.update(ctx, "close validity", primaryID,
		"UPDATE schemas SET valid_until = ? WHERE schema_primary_id = ?",
		until.Format(lineage.DateLayout), primaryID)
}

// UpdateValidity rewrites the validity window of one row.
func (r *SchemaRepository) UpdateValidity(ctx context.Context, primaryID int64, from time.Time, until *time.Time) error {
	var validUntil sql.NullString
	if until != nil {
		validUntil = sql.NullString{String: until.Format(lineage.DateLayout), Valid: true}
	}
	return r.update(ctx, "update validity", primaryID,
		"UPDATE schemas SET valid_from = ?, valid_until = ? WHERE schema_primary_id = ?",
		from.Format(lineage.DateLayout), validUntil, primaryID)
}

// SetSubschema writes subschema and subschema_default.
func (r *SchemaRepository) SetSubschema(ctx context.Context, primaryID int64, editable, computed []int64) error {
	return r.update(ctx, "update subschema", primaryID,
		"UPDATE schemas SET subschema = ?, subschema_default = ? WHERE schema_primary_id = ?",
		encodeIDs(editable), encodeIDs(computed), primaryID)
}

// SetChildSchema writes child_schema and child_schema_default.
func (r *SchemaRepository) SetChildSchema(ctx context.Context, primaryID int64, editable, computed []int64) error {
	return r.update(ctx, "update child schema", primaryID,
		"UPDATE schemas SET child_schema = ?, child_schema_default = ? WHERE schema_primary_id = ?",
		encodeIDs(editable), encodeIDs(computed), primaryID)
}

// SetInheritance writes inherit_schema, inherit_schema_default and base_schema.
func (r *SchemaRepository) SetInheritance(ctx context.Context, primaryID int64, inherit []int64, base int64) error {
	encoded := encodeIDs(inherit)
	return r.update(ctx, "update inheritance", primaryID,
		"UPDATE schemas SET inherit_schema = ?, inherit_schema_default = ?, base_schema = ? WHERE schema_primary_id = ?",
		encoded, encoded, base, primaryID)
}

// SetEditableRelations writes only the administrator-editable arrays.
func (r *SchemaRepository) SetEditableRelations(ctx context.Context, primaryID int64, sub, child, inherit []int64) error {
	return r.update(ctx, "update relations", primaryID,
		"UPDATE schemas SET subschema = ?, child_schema = ?, inherit_schema = ? WHERE schema_primary_id = ?",
		encodeIDs(sub), encodeIDs(child), encodeIDs(inherit), primaryID)
}

// RebuildSearchIndex repopulates schema_search from the non-hidden rows.
func (r *SchemaRepository) RebuildSearchIndex(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM schema_search"); err != nil {
		return fmt.Errorf("failed to clear search index: %w", err)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_search (schema_id, schema_primary_id, schema_id_string, title, subtitle, search_text)
		SELECT schema_id, schema_primary_id, schema_id_string, title, subtitle,
			lower(schema_id_string || ' ' || title || ' ' || subtitle)
		FROM schemas WHERE hidden = 0 AND schema_id <> 0
		ORDER BY schema_primary_id`)
	if err != nil {
		return fmt.Errorf("failed to rebuild search index: %w", err)
	}
	return nil
}

// Search finds valid schemas whose id, title or subtitle contains term.
func (r *SchemaRepository) Search(ctx context.Context, term string, limit int) ([]*secondary.SearchHit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT schema_id, schema_primary_id, schema_id_string, title, subtitle FROM schema_search
		WHERE search_text LIKE ? ESCAPE '\' ORDER BY schema_id_string LIMIT ?`,
		"%"+escapeLike(strings.ToLower(term))+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search schemas: %w", err)
	}
	defer rows.Close()

	var hits []*secondary.SearchHit
	for rows.Next() {
		h := &secondary.SearchHit{}
		if err := rows.Scan(&h.SchemaID, &h.PrimaryID, &h.IDString, &h.Title, &h.Subtitle); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// AppendAudit records one change in the audit trail.
func (r *SchemaRepository) AppendAudit(ctx context.Context, rec *secondary.AuditRecord) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO schema_audit (batch_id, actor, schema_primary_id, action, field_name, old_value, new_value) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.BatchID, rec.Actor, rec.PrimaryID, rec.Action, rec.FieldName, rec.OldValue, rec.NewValue,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// ListAudit retrieves audit entries, newest first.
func (r *SchemaRepository) ListAudit(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditRecord, error) {
	query := "SELECT id, batch_id, actor, schema_primary_id, action, field_name, old_value, new_value, created_at FROM schema_audit WHERE 1=1"
	args := []any{}

	if filters.PrimaryID != 0 {
		query += " AND schema_primary_id = ?"
		args = append(args, filters.PrimaryID)
	}
	if filters.BatchID != "" {
		query += " AND batch_id = ?"
		args = append(args, filters.BatchID)
	}

	query += " ORDER BY id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.AuditRecord
	for rows.Next() {
		e := &secondary.AuditRecord{}
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Actor, &e.PrimaryID, &e.Action, &e.FieldName, &e.OldValue, &e.NewValue, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *SchemaRepository) get(row *sql.Row, what string) (*secondary.SchemaRecord, error) {
	rec, err := scanSchema(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", what, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return rec, nil
}

func (r *SchemaRepository) list(ctx context.Context, what, query string, args ...any) ([]*secondary.SchemaRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	defer rows.Close()

	var records []*secondary.SchemaRecord
	for rows.Next() {
		rec, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	return records, nil
}

func (r *SchemaRepository) update(ctx context.Context, what string, primaryID int64, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("schema row %d: %w", primaryID, secondary.ErrNotFound)
	}
	return nil
}

func scanSchema(row rowScanner) (*secondary.SchemaRecord, error) {
	var (
		rec                                       secondary.SchemaRecord
		document                                  string
		validFrom                                 string
		validUntil                                sql.NullString
		sub, subDef, child, childDef, inh, inhDef string
	)
	err := row.Scan(&rec.PrimaryID, &rec.SchemaID, &rec.IDString, &rec.Title, &rec.Subtitle, &document,
		&rec.Unique, &rec.Hidden, &rec.VersionMajor, &rec.VersionMinor, &validFrom, &validUntil,
		&sub, &subDef, &child, &childDef, &inh, &inhDef, &rec.BaseSchema, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.Document = []byte(document)
	if rec.ValidFrom, err = lineage.ParseDate(validFrom); err != nil {
		return nil, fmt.Errorf("row %d valid_from: %w", rec.PrimaryID, err)
	}
	if validUntil.Valid && validUntil.String != "" {
		until, err := lineage.ParseDate(validUntil.String)
		if err != nil {
			return nil, fmt.Errorf("row %d valid_until: %w", rec.PrimaryID, err)
		}
		rec.ValidUntil = &until
	}

	for _, col := range []struct {
		raw  string
		dest *[]int64
	}{
		{sub, &rec.Subschema}, {subDef, &rec.SubschemaDefault},
		{child, &rec.ChildSchema}, {childDef, &rec.ChildSchemaDefault},
		{inh, &rec.InheritSchema}, {inhDef, &rec.InheritSchemaDefault},
	} {
		ids, err := decodeIDs(col.raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rec.PrimaryID, err)
		}
		*col.dest = ids
	}

	return &rec, nil
}

// encodeIDs stores an id array as JSON text; nil becomes "[]".
func encodeIDs(ids []int64) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func decodeIDs(raw string) ([]int64, error) {
	if raw == "" {
		return []int64{}, nil
	}
	ids := []int64{}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("invalid id array %q: %w", raw, err)
	}
	return ids, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Ensure SchemaRepository implements the interface
var _ secondary.SchemaRepository = (*SchemaRepository)(nil)
