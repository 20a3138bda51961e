package app

import (
	"context"

	"github.com/example/schemareg/internal/ctxutil"
	"github.com/example/schemareg/internal/ports/secondary"
)

// AuditWriterAdapter implements secondary.AuditWriter on top of a SchemaRepository,
// so audit rows share the transaction of the change they describe.
type AuditWriterAdapter struct {
	repo secondary.SchemaRepository
}

// NewAuditWriter creates a new AuditWriterAdapter.
func NewAuditWriter(repo secondary.SchemaRepository) *AuditWriterAdapter {
	return &AuditWriterAdapter{repo: repo}
}

// LogInsert logs a newly inserted schema version.
func (w *AuditWriterAdapter) LogInsert(ctx context.Context, primaryID int64, idString string) error {
	return w.write(ctx, primaryID, "insert", "schema_id_string", "", idString)
}

// LogUpdate logs a changed column of a schema version.
func (w *AuditWriterAdapter) LogUpdate(ctx context.Context, primaryID int64, fieldName, oldValue, newValue string) error {
	return w.write(ctx, primaryID, "update", fieldName, oldValue, newValue)
}

func (w *AuditWriterAdapter) write(ctx context.Context, primaryID int64, action, fieldName, oldValue, newValue string) error {
	actor := ctxutil.ActorFromContext(ctx)
	if actor == "" {
		actor = "system"
	}

	return w.repo.AppendAudit(ctx, &secondary.AuditRecord{
		BatchID:   ctxutil.BatchIDFromContext(ctx),
		Actor:     actor,
		PrimaryID: primaryID,
		Action:    action,
		FieldName: fieldName,
		OldValue:  oldValue,
		NewValue:  newValue,
	})
}

var _ secondary.AuditWriter = (*AuditWriterAdapter)(nil)
