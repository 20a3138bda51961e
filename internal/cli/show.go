package cli

import (
	"github.com/spf13/cobra"
)

// ShowCmd returns the show command.
func ShowCmd() *cobra.Command {
	var withDocument bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the currently valid version of a schema",
		Example: `  schemareg show /person
  schemareg show --document /person/address`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			return adapter.Show(NewContext(), args[0], withDocument)
		},
	}

	cmd.Flags().BoolVarP(&withDocument, "document", "d", false, "Include the stored document")
	return cmd
}

// VersionsCmd returns the versions command.
func VersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <id>",
		Short: "List every stored version of a schema, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			return adapter.Versions(NewContext(), args[0])
		},
	}
}

// SearchCmd returns the search command.
func SearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search valid schemas by id, title and subtitle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			return adapter.Search(NewContext(), args[0], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of hits")
	return cmd
}
