package cli

import (
	"strings"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/schemareg/internal/adapters/cli"
)

// TreeCmd returns the tree command.
func TreeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tree [schema-id...]",
		Short: "Show the relationship tree of valid schemas",
		Long: `Materialize the relationship graph of currently valid schemas as a tree.

Without arguments the tree starts from the root record's top-level set.
Edges that would close a cycle are reported and left out.

Examples:
  schemareg tree
  schemareg tree 12 14
  schemareg tree --json 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := cliadapter.ParseIDs(strings.Join(args, ","))
			if err != nil {
				return err
			}

			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			return adapter.Tree(NewContext(), roots, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tree as JSON")
	return cmd
}
