package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/schemareg/internal/wire"
)

// IngestCmd returns the ingest command.
func IngestCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Upload schema documents as one batch",
		Long: `Upload JSON or YAML schema documents as a single batch.

Directories are walked recursively for .json, .yaml and .yml files. Documents
are ordered by id and version before insertion, so one batch may carry several
versions of the same schema. A rejected document does not abort the batch.

After insertion the relationship pass recomputes subschema, child schema and
inheritance arrays of every currently valid schema (all versions with --full).

Examples:
  schemareg ingest schemas/
  schemareg ingest person.json address.yaml
  schemareg ingest --full schemas/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			docs, err := wire.DocumentSource().Load(ctx, args)
			if err != nil {
				return err
			}

			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			result, err := adapter.Ingest(ctx, docs, full, GetActorID())
			if err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d document(s) rejected", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Recompute relationships of historical versions too")
	return cmd
}

// RelinkCmd returns the relink command.
func RelinkCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "relink",
		Short: "Recompute relationship arrays without uploading",
		Long: `Run the relationship pass on demand.

By default only currently valid schemas are recomputed. With --all every stored
version is resolved against the currently valid set.

Examples:
  schemareg relink
  schemareg relink --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			return adapter.Relink(NewContext(), all, GetActorID())
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include historical versions")
	return cmd
}
