package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/schemareg/internal/ports/primary"
)

// AuditCmd returns the audit command.
func AuditCmd() *cobra.Command {
	var filters primary.AuditFilters

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail of schema changes",
		Example: `  schemareg audit
  schemareg audit --row 42
  schemareg audit --batch 0b8c6c1e-6f0e-4b53-9a49-3c2d8f0f6d1a`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			return adapter.Audit(NewContext(), filters)
		},
	}

	cmd.Flags().Int64Var(&filters.PrimaryID, "row", 0, "Only entries for this primary id")
	cmd.Flags().StringVar(&filters.BatchID, "batch", "", "Only entries of this batch")
	cmd.Flags().IntVarP(&filters.Limit, "limit", "n", 50, "Maximum number of entries")
	return cmd
}
