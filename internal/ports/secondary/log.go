package secondary

import "context"

// AuditWriter defines the interface for writing audit trail entries.
// Implementations extract actor and batch id from context.
type AuditWriter interface {
	// LogInsert logs a newly inserted schema version.
	LogInsert(ctx context.Context, primaryID int64, idString string) error

	// LogUpdate logs a changed column of a schema version.
	// fieldName, oldValue, newValue describe what changed.
	LogUpdate(ctx context.Context, primaryID int64, fieldName, oldValue, newValue string) error
}
