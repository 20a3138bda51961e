package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/schemareg/internal/cli"
	"github.com/example/schemareg/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "schemareg",
		Short:   "Schema registry with versioned lineages and relationship resolution",
		Version: version.String(),
		Long: `schemareg stores versioned JSON schema documents, keeps exactly one
version of each lineage valid at a time and resolves the subschema, child
and inheritance relationships declared between them.`,
		SilenceErrors: true,
	}
	cli.ConfigureRoot(rootCmd)

	// Registry operations
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.RelinkCmd())
	rootCmd.AddCommand(cli.TreeCmd())
	rootCmd.AddCommand(cli.ShowCmd())
	rootCmd.AddCommand(cli.VersionsCmd())
	rootCmd.AddCommand(cli.SearchCmd())

	// Administration
	rootCmd.AddCommand(cli.EditRelationsCmd())
	rootCmd.AddCommand(cli.EditValidityCmd())
	rootCmd.AddCommand(cli.AuditCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.ConfigCmd())
	rootCmd.AddCommand(cli.VersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_ = cli.Shutdown()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
