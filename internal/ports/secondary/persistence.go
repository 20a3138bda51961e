// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// SchemaRepository defines the secondary port for schema version persistence.
// Implementations back both the store and an open transaction.
type SchemaRepository interface {
	// ListLineage retrieves every row of a lineage, newest version first.
	ListLineage(ctx context.Context, idString string) ([]*SchemaRecord, error)

	// MaxSchemaID returns the highest schema_id in the store, the root included.
	MaxSchemaID(ctx context.Context) (int64, error)

	// GetByPrimaryID retrieves one row by its surrogate key.
	GetByPrimaryID(ctx context.Context, primaryID int64) (*SchemaRecord, error)

	// GetValid retrieves the non-hidden row of a lineage.
	GetValid(ctx context.Context, idString string) (*SchemaRecord, error)

	// ListValid retrieves every non-hidden row, the root included, ordered by id string.
	ListValid(ctx context.Context) ([]*SchemaRecord, error)

	// ListAll retrieves every row, historical versions included.
	ListAll(ctx context.Context) ([]*SchemaRecord, error)

	// GetRoot retrieves the synthetic root record.
	GetRoot(ctx context.Context) (*SchemaRecord, error)

	// Insert persists a new version and returns its primary id.
	Insert(ctx context.Context, record *SchemaRecord) (int64, error)

	// HideLineage marks every row of a lineage hidden.
	HideLineage(ctx context.Context, schemaID int64) error

	// CloseValidity sets valid_until of one row.
	CloseValidity(ctx context.Context, primaryID int64, until time.Time) error

	// UpdateValidity rewrites the validity window of one row.
	UpdateValidity(ctx context.Context, primaryID int64, from time.Time, until *time.Time) error

	// SetSubschema writes subschema and subschema_default.
	SetSubschema(ctx context.Context, primaryID int64, editable, computed []int64) error

	// SetChildSchema writes child_schema and child_schema_default.
	SetChildSchema(ctx context.Context, primaryID int64, editable, computed []int64) error

	// SetInheritance writes inherit_schema, inherit_schema_default and base_schema.
	SetInheritance(ctx context.Context, primaryID int64, inherit []int64, base int64) error

	// SetEditableRelations writes only the administrator-editable arrays.
	SetEditableRelations(ctx context.Context, primaryID int64, sub, child, inherit []int64) error

	// RebuildSearchIndex repopulates schema_search from the non-hidden rows.
	RebuildSearchIndex(ctx context.Context) error

	// Search finds valid schemas whose id, title or subtitle contains term.
	Search(ctx context.Context, term string, limit int) ([]*SearchHit, error)

	// AppendAudit records one change in the audit trail.
	AppendAudit(ctx context.Context, record *AuditRecord) error

	// ListAudit retrieves audit entries, newest first.
	ListAudit(ctx context.Context, filters AuditFilters) ([]*AuditRecord, error)
}

// SchemaTx is a SchemaRepository bound to one open transaction.
type SchemaTx interface {
	SchemaRepository
	Commit() error
	Rollback() error
}

// SchemaStore is the SchemaRepository over the whole database.
type SchemaStore interface {
	SchemaRepository

	// Begin opens a write transaction. Implementations serialize writers.
	Begin(ctx context.Context) (SchemaTx, error)
}

// SchemaRecord represents one schema version as stored in persistence.
type SchemaRecord struct {
	PrimaryID            int64
	SchemaID             int64 // stable per lineage
	IDString             string
	Title                string
	Subtitle             string
	Document             []byte
	Unique               bool
	Hidden               bool
	VersionMajor         int
	VersionMinor         int
	ValidFrom            time.Time
	ValidUntil           *time.Time
	Subschema            []int64
	SubschemaDefault     []int64
	ChildSchema          []int64
	ChildSchemaDefault   []int64
	InheritSchema        []int64
	InheritSchemaDefault []int64
	BaseSchema           int64 // 0 when the row has no ancestor
	CreatedAt            time.Time
}

// SearchHit represents one row of the search index.
type SearchHit struct {
	SchemaID  int64
	PrimaryID int64
	IDString  string
	Title     string
	Subtitle  string
}

// AuditRecord represents one audit trail entry.
type AuditRecord struct {
	ID        int64
	BatchID   string
	Actor     string
	PrimaryID int64
	Action    string // "insert", "update"
	FieldName string
	OldValue  string
	NewValue  string
	CreatedAt time.Time
}

// AuditFilters contains filter options for querying the audit trail.
type AuditFilters struct {
	PrimaryID int64
	BatchID   string
	Limit     int
}
