// Package cli provides CLI commands for the schemareg application.
package cli

import (
	gocontext "context"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cliadapter "github.com/example/schemareg/internal/adapters/cli"
	"github.com/example/schemareg/internal/config"
	"github.com/example/schemareg/internal/ctxutil"
	"github.com/example/schemareg/internal/log"
	"github.com/example/schemareg/internal/wire"
)

const shutdownTimeout = 5 * time.Second

var (
	// globalActorID is recorded in the audit trail for every write of this invocation.
	globalActorID string

	// loadedConfig and configPath are set in PersistentPreRunE.
	loadedConfig *config.Config
	configPath   string

	closeLog func()
)

// ConfigureRoot adds the global flags and the bootstrap hooks to the root command.
func ConfigureRoot(root *cobra.Command) {
	v := viper.New()
	var explicitConfig string

	flags := root.PersistentFlags()
	flags.StringVar(&explicitConfig, "config", "", "Path to schemareg.yaml (default: search upwards from cwd)")
	flags.String("driver", "", "Database driver: sqlite or postgres")
	flags.String("db", "", "SQLite database file")
	flags.String("db-url", "", "PostgreSQL connection string")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Write logs to this file instead of stderr")
	flags.StringVar(&globalActorID, "actor", "", "Actor recorded in the audit trail (default: current user)")

	_ = v.BindPFlag("database.driver", flags.Lookup("driver"))
	_ = v.BindPFlag("database.path", flags.Lookup("db"))
	_ = v.BindPFlag("database.url", flags.Lookup("db-url"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.file", flags.Lookup("log-file"))

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, path, err := config.Load(v, explicitConfig)
		if err != nil {
			return err
		}
		loadedConfig, configPath = cfg, path

		level, err := log.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		if closeLog, err = log.Init(cfg.Log.File, level); err != nil {
			return err
		}
		if path != "" {
			log.Debug(log.CatConfig, "loaded config", "path", path)
		}

		DetectAndStoreActor()
		wire.Configure(cfg)
		return nil
	}

	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return Shutdown()
	}
}

// Shutdown releases wired resources. main calls it again on error paths,
// where cobra skips PersistentPostRunE.
func Shutdown() error {
	ctx, cancel := gocontext.WithTimeout(gocontext.Background(), shutdownTimeout)
	defer cancel()

	err := wire.Shutdown(ctx)
	if closeLog != nil {
		closeLog()
		closeLog = nil
	}
	return err
}

// DetectAndStoreActor falls back to the OS user when --actor was not given.
func DetectAndStoreActor() {
	if globalActorID != "" {
		return
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		globalActorID = u.Username
		return
	}
	globalActorID = os.Getenv("USER")
}

// GetActorID returns the actor for the current CLI invocation.
func GetActorID() string {
	return globalActorID
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	ctx := gocontext.Background()
	if globalActorID != "" {
		return ctxutil.WithActorID(ctx, globalActorID)
	}
	return ctx
}

func schemaAdapter(cmd *cobra.Command) (*cliadapter.SchemaAdapter, error) {
	a, err := wire.SchemaAdapterWithOutput(cmd.OutOrStdout())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}
