package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/example/schemareg/internal/db"
	"github.com/example/schemareg/internal/ports/secondary"
)

// writerLockKey is the advisory lock every write transaction holds, so
// ingestion batches and edits run one at a time.
const writerLockKey int64 = 0x5c4e3a

// SchemaStore implements secondary.SchemaStore over a pgx pool.
type SchemaStore struct {
	*SchemaRepository
	pool *pgxpool.Pool
}

// Open connects to url.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded postgres migrations through pool.
func Migrate(pool *pgxpool.Pool) (db.MigrationStatus, error) {
	conn := stdlib.OpenDBFromPool(pool)
	return db.Migrate(conn, db.DriverPostgres)
}

// MigrationStatus reports the applied migration level.
func MigrationStatus(pool *pgxpool.Pool) (db.MigrationStatus, error) {
	return db.Status(stdlib.OpenDBFromPool(pool), db.DriverPostgres)
}

// NewSchemaStore creates a store over pool.
func NewSchemaStore(pool *pgxpool.Pool) *SchemaStore {
	return &SchemaStore{SchemaRepository: &SchemaRepository{db: pool}, pool: pool}
}

// Begin opens a write transaction holding the writer advisory lock.
func (s *SchemaStore) Begin(ctx context.Context) (secondary.SchemaTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", writerLockKey); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to acquire writer lock: %w", err)
	}
	return &schemaTx{SchemaRepository: &SchemaRepository{db: tx}, tx: tx, ctx: ctx}, nil
}

type schemaTx struct {
	*SchemaRepository
	tx  pgx.Tx
	ctx context.Context
}

func (t *schemaTx) Commit() error {
	if err := t.tx.Commit(t.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *schemaTx) Rollback() error {
	// Rollback must run even when the batch context was cancelled.
	if err := t.tx.Rollback(context.WithoutCancel(t.ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// Ensure SchemaStore implements the interface
var _ secondary.SchemaStore = (*SchemaStore)(nil)
