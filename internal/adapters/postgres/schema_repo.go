// Package postgres contains PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/schemareg/internal/ports/secondary"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaColumns = `schema_primary_id, schema_id, schema_id_string, title, subtitle, document_schema,
	uniqueness, hidden, version_major, version_minor, valid_from, valid_until,
	subschema, subschema_default, child_schema, child_schema_default,
	inherit_schema, inherit_schema_default, base_schema, created_at`

// SchemaRepository implements secondary.SchemaRepository with PostgreSQL.
type SchemaRepository struct {
	db querier
}

// ListLineage retrieves every row of a lineage, newest version first.
func (r *SchemaRepository) ListLineage(ctx context.Context, idString string) ([]*secondary.SchemaRecord, error) {
	return r.list(ctx, "lineage",
		"SELECT "+schemaColumns+" FROM schemas WHERE schema_id_string = $1 ORDER BY version_major DESC, version_minor DESC, schema_primary_id DESC",
		idString)
}

// MaxSchemaID returns the highest schema_id in the store.
func (r *SchemaRepository) MaxSchemaID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx, "SELECT COALESCE(MAX(schema_id), 0) FROM schemas").Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to get max schema id: %w", err)
	}
	return id, nil
}

// GetByPrimaryID retrieves one row by its surrogate key.
func (r *SchemaRepository) GetByPrimaryID(ctx context.Context, primaryID int64) (*secondary.SchemaRecord, error) {
	row := r.db.QueryRow(ctx, "SELECT "+schemaColumns+" FROM schemas WHERE schema_primary_id = $1", primaryID)
	return get(row, fmt.Sprintf("schema row %d", primaryID))
}

// GetValid retrieves the non-hidden row of a lineage.
func (r *SchemaRepository) GetValid(ctx context.Context, idString string) (*secondary.SchemaRecord, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+schemaColumns+" FROM schemas WHERE schema_id_string = $1 AND NOT hidden ORDER BY version_major DESC, version_minor DESC LIMIT 1",
		idString)
	return get(row, fmt.Sprintf("schema %s", idString))
}

// ListValid retrieves every non-hidden row, ordered by id string.
func (r *SchemaRepository) ListValid(ctx context.Context) ([]*secondary.SchemaRecord, error) {
	return r.list(ctx, "valid schemas",
		"SELECT "+schemaColumns+" FROM schemas WHERE NOT hidden ORDER BY schema_id_string COLLATE \"C\", schema_primary_id")
}

// ListAll retrieves every row, historical versions included.
func (r *SchemaRepository) ListAll(ctx context.Context) ([]*secondary.SchemaRecord, error) {
	return r.list(ctx, "schemas",
		"SELECT "+schemaColumns+" FROM schemas ORDER BY schema_id_string COLLATE \"C\", version_major, version_minor, schema_primary_id")
}

// GetRoot retrieves the synthetic root record.
func (r *SchemaRepository) GetRoot(ctx context.Context) (*secondary.SchemaRecord, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+schemaColumns+" FROM schemas WHERE schema_id = 0 ORDER BY schema_primary_id LIMIT 1")
	return get(row, "root schema")
}

// Insert persists a new version and returns its primary id.
func (r *SchemaRepository) Insert(ctx context.Context, rec *secondary.SchemaRecord) (int64, error) {
	doc := rec.Document
	if len(doc) == 0 {
		doc = []byte("{}")
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO schemas (schema_id, schema_id_string, title, subtitle, document_schema, uniqueness, hidden,
			version_major, version_minor, valid_from, valid_until,
			subschema, subschema_default, child_schema, child_schema_default,
			inherit_schema, inherit_schema_default, base_schema)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING schema_primary_id`,
		rec.SchemaID, rec.IDString, rec.Title, rec.Subtitle, doc, rec.Unique, rec.Hidden,
		rec.VersionMajor, rec.VersionMinor, rec.ValidFrom, rec.ValidUntil,
		ids(rec.Subschema), ids(rec.SubschemaDefault),
		ids(rec.ChildSchema), ids(rec.ChildSchemaDefault),
		ids(rec.InheritSchema), ids(rec.InheritSchemaDefault), rec.BaseSchema,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert schema: %w", err)
	}
	return id, nil
}

// HideLineage marks every row of a lineage hidden.
func (r *SchemaRepository) HideLineage(ctx context.Context, schemaID int64) error {
	if _, err := r.db.Exec(ctx, "UPDATE schemas SET hidden = TRUE WHERE schema_id = $1", schemaID); err != nil {
		return fmt.Errorf("failed to hide lineage: %w", err)
	}
	return nil
}

// CloseValidity sets valid_until of one row.
func (r *SchemaRepository) CloseValidity(ctx context.Context, primaryID int64, until time.Time) error {
	return r.update(ctx, "close validity", primaryID,
		"UPDATE schemas SET valid_until = $1 WHERE schema_primary_id = $2", until, primaryID)
}

// UpdateValidity rewrites the validity window of one row.
func (r *SchemaRepository) UpdateValidity(ctx context.Context, primaryID int64, from time.Time, until *time.Time) error {
	return r.update(ctx, "update validity", primaryID,
		"UPDATE schemas SET valid_from = $1, valid_until = $2 WHERE schema_primary_id = $3", from, until, primaryID)
}

// SetSubschema writes subschema and subschema_default.
func (r *SchemaRepository) SetSubschema(ctx context.Context, primaryID int64, editable, computed []int64) error {
	return r.update(ctx, "update subschema", primaryID,
		"UPDATE schemas SET subschema = $1, subschema_default = $2 WHERE schema_primary_id = $3",
		ids(editable), ids(computed), primaryID)
}

// SetChildSchema writes child_schema and child_schema_default.
func (r *SchemaRepository) SetChildSchema(ctx context.Context, primaryID int64, editable, computed []int64) error {
	return r.update(ctx, "update child schema", primaryID,
		"UPDATE schemas SET child_schema = $1, child_schema_default = $2 WHERE schema_primary_id = $3",
		ids(editable), ids(computed), primaryID)
}

// SetInheritance writes inherit_schema, inherit_schema_default and base_schema.
func (r *SchemaRepository) SetInheritance(ctx context.Context, primaryID int64, inherit []int64, base int64) error {
	return r.update(ctx, "update inheritance", primaryID,
		"UPDATE schemas SET inherit_schema = $1, inherit_schema_default = $1, base_schema = $2 WHERE schema_primary_id = $3",
		ids(inherit), base, primaryID)
}

// SetEditableRelations writes only the administrator-editable arrays.
func (r *SchemaRepository) SetEditableRelations(ctx context.Context, primaryID int64, sub, child, inherit []int64) error {
	return r.update(ctx, "update relations", primaryID,
		"UPDATE schemas SET subschema = $1, child_schema = $2, inherit_schema = $3 WHERE schema_primary_id = $4",
		ids(sub), ids(child), ids(inherit), primaryID)
}

// RebuildSearchIndex repopulates schema_search from the non-hidden rows.
func (r *SchemaRepository) RebuildSearchIndex(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM schema_search"); err != nil {
		return fmt.Errorf("failed to clear search index: %w", err)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO schema_search (schema_id, schema_primary_id, schema_id_string, title, subtitle, search_text)
		SELECT DISTINCT ON (schema_id) schema_id, schema_primary_id, schema_id_string, title, subtitle,
			lower(schema_id_string || ' ' || title || ' ' || subtitle)
		FROM schemas WHERE NOT hidden AND schema_id <> 0
		ORDER BY schema_id, schema_primary_id DESC`)
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
	rows, err := r.db.Query(ctx,
		`SELECT schema_id, schema_primary_id, schema_id_string, title, subtitle FROM schema_search
		WHERE strpos(search_text, $1) > 0 ORDER BY schema_id_string COLLATE "C" LIMIT $2`,
		strings.ToLower(term), limit)
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
	err := r.db.QueryRow(ctx,
		`INSERT INTO schema_audit (batch_id, actor, schema_primary_id, action, field_name, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		rec.BatchID, rec.Actor, rec.PrimaryID, rec.Action, rec.FieldName, rec.OldValue, rec.NewValue,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListAudit retrieves audit entries, newest first.
func (r *SchemaRepository) ListAudit(ctx context.Context, filters secondary.AuditFilters) ([]*secondary.AuditRecord, error) {
	query := "SELECT id, batch_id, actor, schema_primary_id, action, field_name, old_value, new_value, created_at FROM schema_audit WHERE TRUE"
	args := []any{}

	if filters.PrimaryID != 0 {
		args = append(args, filters.PrimaryID)
		query += fmt.Sprintf(" AND schema_primary_id = $%d", len(args))
	}
	if filters.BatchID != "" {
		args = append(args, filters.BatchID)
		query += fmt.Sprintf(" AND batch_id = $%d", len(args))
	}

	query += " ORDER BY id DESC"

	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
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

func get(row pgx.Row, what string) (*secondary.SchemaRecord, error) {
	rec, err := scanSchema(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	return rec, nil
}

func (r *SchemaRepository) list(ctx context.Context, what, query string, args ...any) ([]*secondary.SchemaRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
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
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("schema row %d: %w", primaryID, secondary.ErrNotFound)
	}
	return nil
}

func scanSchema(row pgx.Row) (*secondary.SchemaRecord, error) {
	var rec secondary.SchemaRecord
	err := row.Scan(&rec.PrimaryID, &rec.SchemaID, &rec.IDString, &rec.Title, &rec.Subtitle, &rec.Document,
		&rec.Unique, &rec.Hidden, &rec.VersionMajor, &rec.VersionMinor, &rec.ValidFrom, &rec.ValidUntil,
		&rec.Subschema, &rec.SubschemaDefault, &rec.ChildSchema, &rec.ChildSchemaDefault,
		&rec.InheritSchema, &rec.InheritSchemaDefault, &rec.BaseSchema, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.ValidFrom = rec.ValidFrom.UTC()
	if rec.ValidUntil != nil {
		until := rec.ValidUntil.UTC()
		rec.ValidUntil = &until
	}
	return &rec, nil
}

// ids keeps empty arrays non-NULL.
func ids(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

// Ensure SchemaRepository implements the interface
var _ secondary.SchemaRepository = (*SchemaRepository)(nil)
