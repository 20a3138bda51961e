package primary

import (
	"context"
	"time"

	"github.com/example/schemareg/internal/core/graph"
	"github.com/example/schemareg/internal/ingest"
)

// SchemaService defines the primary port for schema registry operations.
type SchemaService interface {
	// Ingest inserts a batch of documents as new versions and recomputes
	// relationships, all in one transaction.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)

	// Relink runs the relationship pass on demand. all also recomputes
	// historical versions.
	Relink(ctx context.Context, req RelinkRequest) (*RelinkResult, error)

	// BuildTree materializes the relationship forest below roots, or below the
	// root record's subschema when roots is empty.
	BuildTree(ctx context.Context, roots []int64) (*Tree, error)

	// GetSchema retrieves the currently valid version of a schema.
	GetSchema(ctx context.Context, idString string) (*Schema, error)

	// ListVersions retrieves every version of a schema, newest first.
	ListVersions(ctx context.Context, idString string) ([]*Schema, error)

	// UpdateRelationships overwrites the editable relationship arrays of one version.
	UpdateRelationships(ctx context.Context, req UpdateRelationshipsRequest) error

	// UpdateValidity overwrites the validity window of one version.
	UpdateValidity(ctx context.Context, req UpdateValidityRequest) error

	// Search finds valid schemas by id, title or subtitle.
	Search(ctx context.Context, term string, limit int) ([]*SearchHit, error)

	// Check verifies lineage and relationship invariants across the store.
	Check(ctx context.Context) (*CheckReport, error)

	// ListAudit retrieves audit trail entries.
	ListAudit(ctx context.Context, filters AuditFilters) ([]*AuditEntry, error)
}

// Tree is the materialized relationship forest.
type Tree = graph.Tree

// IngestRequest contains the documents of one upload batch.
type IngestRequest struct {
	Documents     []ingest.Document
	ForceFullPass bool   // recompute historical versions too
	Actor         string // recorded in the audit trail
}

// IngestResult contains the outcome of a batch.
type IngestResult struct {
	BatchID              string
	Inserted             int
	UpdatedCount         int
	FullRelationshipPass bool
	Errors               []string // one per rejected document
}

// RelinkRequest asks for an on-demand relationship pass.
type RelinkRequest struct {
	All   bool // include historical versions
	Actor string
}

// RelinkResult contains the outcome of an on-demand relationship pass.
type RelinkResult struct {
	BatchID      string
	UpdatedCount int
	RootChanged  bool
}

// UpdateRelationshipsRequest contains the new editable arrays of a version.
type UpdateRelationshipsRequest struct {
	PrimaryID     int64
	Subschema     []int64
	ChildSchema   []int64
	InheritSchema []int64
	Actor         string
}

// UpdateValidityRequest contains a new validity window in YYYY-MM-DD form.
// An empty ValidUntil leaves the window open.
type UpdateValidityRequest struct {
	PrimaryID  int64
	ValidFrom  string
	ValidUntil string
	Actor      string
}

// Schema represents one schema version at the service boundary.
type Schema struct {
	PrimaryID            int64
	SchemaID             int64
	IDString             string
	Title                string
	Subtitle             string
	Version              string
	Unique               bool
	Hidden               bool
	ValidFrom            string
	ValidUntil           string
	Subschema            []int64
	SubschemaDefault     []int64
	ChildSchema          []int64
	ChildSchemaDefault   []int64
	InheritSchema        []int64
	InheritSchemaDefault []int64
	BaseSchema           int64
	Document             []byte
	CreatedAt            time.Time
}

// SearchHit represents one search result.
type SearchHit struct {
	SchemaID  int64
	PrimaryID int64
	IDString  string
	Title     string
	Subtitle  string
}

// CheckReport lists invariant violations found by Check.
type CheckReport struct {
	Lineages   int
	Rows       int
	Violations []Violation
}

// OK reports whether no violations were found.
func (r *CheckReport) OK() bool { return len(r.Violations) == 0 }

// Violation describes one broken invariant.
type Violation struct {
	SchemaID int64
	Message  string
}

// AuditFilters contains filter options for listing audit entries.
type AuditFilters struct {
	PrimaryID int64
	BatchID   string
	Limit     int
}

// AuditEntry represents one audit trail entry.
type AuditEntry struct {
	ID        int64
	BatchID   string
	Actor     string
	PrimaryID int64
	Action    string
	FieldName string
	OldValue  string
	NewValue  string
	CreatedAt time.Time
}
