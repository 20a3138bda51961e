package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/schemareg/internal/ports/secondary"
)

// SchemaStore implements secondary.SchemaStore over a SQLite database.
// Open the database with db.OpenSQLite so transactions begin IMMEDIATE.
type SchemaStore struct {
	*SchemaRepository
	conn *sql.DB
}

// NewSchemaStore creates a store over conn.
func NewSchemaStore(conn *sql.DB) *SchemaStore {
	return &SchemaStore{SchemaRepository: NewSchemaRepository(conn), conn: conn}
}

// Begin opens a write transaction.
func (s *SchemaStore) Begin(ctx context.Context) (secondary.SchemaTx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &schemaTx{SchemaRepository: &SchemaRepository{db: tx}, tx: tx}, nil
}

type schemaTx struct {
	*SchemaRepository
	tx *sql.Tx
}

func (t *schemaTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *schemaTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// Ensure SchemaStore implements the interface
var _ secondary.SchemaStore = (*SchemaStore)(nil)
