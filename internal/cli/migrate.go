package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/schemareg/internal/wire"
)

// MigrateCmd returns the migrate command.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Apply pending database migrations and seed the root record.

Every command migrates on startup, so this is only needed to prepare a
database ahead of time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := wire.MigrationStatus()
			if err != nil {
				return err
			}
			if status.Dirty {
				return fmt.Errorf("database is dirty at migration %d", status.Version)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s database at migration %d\n", loadedConfig.Database.Driver, status.Version)
			return nil
		},
	}
}
