package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/schemareg/internal/adapters/cli"
	"github.com/example/schemareg/internal/ports/primary"
)

// EditRelationsCmd returns the edit-relations command.
func EditRelationsCmd() *cobra.Command {
	var sub, child, inherit string

	cmd := &cobra.Command{
		Use:   "edit-relations <primary-id>",
		Short: "Overwrite the editable relationship arrays of one version",
		Long: `Overwrite subschema, child schema and inherit schema of one stored version.

All three arrays are replaced; an omitted flag clears that array. Computed
defaults are untouched. The next relationship pass overwrites an edited
array once its computed default changes.

Examples:
  schemareg edit-relations 42 --sub 3,4 --child 7
  schemareg edit-relations 42 --inherit ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePrimaryID(args[0])
			if err != nil {
				return err
			}

			req := primary.UpdateRelationshipsRequest{PrimaryID: pid, Actor: GetActorID()}
			if req.Subschema, err = cliadapter.ParseIDs(sub); err != nil {
				return fmt.Errorf("--sub: %w", err)
			}
			if req.ChildSchema, err = cliadapter.ParseIDs(child); err != nil {
				return fmt.Errorf("--child: %w", err)
			}
			if req.InheritSchema, err = cliadapter.ParseIDs(inherit); err != nil {
				return fmt.Errorf("--inherit: %w", err)
			}

			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			return adapter.EditRelations(NewContext(), req)
		},
	}

	cmd.Flags().StringVar(&sub, "sub", "", "Comma separated subschema ids")
	cmd.Flags().StringVar(&child, "child", "", "Comma separated child schema ids")
	cmd.Flags().StringVar(&inherit, "inherit", "", "Comma separated inherit schema ids")
	return cmd
}

// EditValidityCmd returns the edit-validity command.
func EditValidityCmd() *cobra.Command {
	var from, until string

	cmd := &cobra.Command{
		Use:   "edit-validity <primary-id>",
		Short: "Change the validity window of one version",
		Long: `Change valid_from and valid_until of one stored version.

Dates use YYYY-MM-DD. The new window must not overlap the neighbouring
versions of the same lineage. An empty --until leaves the version open.

Examples:
  schemareg edit-validity 42 --from 2024-01-01 --until 2024-06-30
  schemareg edit-validity 43 --from 2024-07-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePrimaryID(args[0])
			if err != nil {
				return err
			}

			adapter, err := schemaAdapter(cmd)
			if err != nil {
				return err
			}
			return adapter.EditValidity(NewContext(), primary.UpdateValidityRequest{
				PrimaryID:  pid,
				ValidFrom:  from,
				ValidUntil: until,
				Actor:      GetActorID(),
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First valid day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Last valid day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func parsePrimaryID(s string) (int64, error) {
	pid, err := strconv.ParseInt(s, 10, 64)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid primary id %q", s)
	}
	return pid, nil
}
