// Package wire provides dependency injection for the schemareg application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	cliadapter "github.com/example/schemareg/internal/adapters/cli"
	"github.com/example/schemareg/internal/adapters/filesystem"
	"github.com/example/schemareg/internal/adapters/postgres"
	"github.com/example/schemareg/internal/adapters/sqlite"
	"github.com/example/schemareg/internal/app"
	"github.com/example/schemareg/internal/config"
	"github.com/example/schemareg/internal/core/relationship"
	"github.com/example/schemareg/internal/db"
	"github.com/example/schemareg/internal/log"
	"github.com/example/schemareg/internal/ports/primary"
	"github.com/example/schemareg/internal/ports/secondary"
	"github.com/example/schemareg/internal/tracing"
)

var (
	cfg           *config.Config
	provider      *tracing.Provider
	store         secondary.SchemaStore
	schemaService primary.SchemaService
	migration     db.MigrationStatus
	closers       []func()
	initErr       error
	once          sync.Once
)

// Configure sets the configuration used when services are first requested.
// Must be called before any accessor.
func Configure(c *config.Config) {
	cfg = c
}

// SchemaService returns the singleton SchemaService instance.
func SchemaService() (primary.SchemaService, error) {
	once.Do(initServices)
	return schemaService, initErr
}

// MigrationStatus returns the schema version the database was migrated to on startup.
func MigrationStatus() (db.MigrationStatus, error) {
	once.Do(initServices)
	return migration, initErr
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	if cfg == nil {
		initErr = errors.New("wire: configuration not loaded")
		return
	}
	ctx := context.Background()

	p, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		initErr = err
		return
	}
	provider = p

	switch cfg.Database.Driver {
	case db.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			initErr = err
			return
		}
		closers = append(closers, pool.Close)
		if migration, err = postgres.Migrate(pool); err != nil {
			initErr = err
			return
		}
		store = postgres.NewSchemaStore(pool)

	default:
		path, err := cfg.SQLitePath()
		if err != nil {
			initErr = err
			return
		}
		conn, err := db.OpenSQLite(path)
		if err != nil {
			initErr = err
			return
		}
		closers = append(closers, func() { _ = conn.Close() })
		if migration, err = db.Migrate(conn, db.DriverSQLite); err != nil {
			initErr = err
			return
		}
		store = sqlite.NewSchemaStore(conn)
	}
	log.Debug(log.CatDB, "database ready", "driver", cfg.Database.Driver, "version", migration.Version)

	// Compiled patterns are shared across passes for the life of the process.
	matcher := relationship.NewMatcher(cfg.Resolver.CacheExpiration, cfg.Resolver.CacheCleanup)

	schemaService = app.NewSchemaService(store, matcher, provider.Tracer(), cfg.Ingest.FullPass)
}

// SchemaAdapter returns a new SchemaAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func SchemaAdapter() (*cliadapter.SchemaAdapter, error) {
	return SchemaAdapterWithOutput(os.Stdout)
}

// SchemaAdapterWithOutput returns a new SchemaAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func SchemaAdapterWithOutput(out io.Writer) (*cliadapter.SchemaAdapter, error) {
	svc, err := SchemaService()
	if err != nil {
		return nil, err
	}
	return cliadapter.NewSchemaAdapter(svc, out), nil
}

// DocumentSource returns the loader for schema files on disk.
func DocumentSource() secondary.DocumentSource {
	return filesystem.NewDocumentLoader()
}

// Shutdown flushes traces and closes the database. Services are initialized
// again on the next access.
func Shutdown(ctx context.Context) error {
	var errs []error
	if provider != nil {
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
		}
		provider = nil
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
	schemaService, store = nil, nil
	once = sync.Once{}
	return errors.Join(errs...)
}
