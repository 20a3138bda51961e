package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/schemareg/internal/version"
	"github.com/example/schemareg/internal/wire"
)

// DoctorCmd returns the doctor command for registry validation
func DoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate stored lineages and relationship arrays",
		Long: `Consistency check of the registry.

Validates:
- Every lineage has exactly one visible version
- Validity windows of a lineage do not overlap and versions are unique
- Subschema and child schema of valid rows are disjoint
- The root record's top-level set is current

Examples:
  schemareg doctor          # Exit code 0 when healthy, 1 when problems were found`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, version.String())
			if configPath != "" {
				fmt.Fprintf(out, "config:   %s\n", configPath)
			}
			fmt.Fprintf(out, "database: %s\n", loadedConfig.Database.Driver)

			status, err := wire.MigrationStatus()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "schema:   migration %d\n\n", status.Version)

			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			ok, err := adapter.Doctor(NewContext())
			if err != nil {
				return err
			}
			if !ok {
				cmd.SilenceUsage = true
				return fmt.Errorf("registry has consistency problems")
			}
			return nil
		},
	}
	return cmd
}
