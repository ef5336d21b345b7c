package imports

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/cmd/emoji"
	"github.com/agentstation/placemap/internal/cmd/table"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
)

// NewClearCommand creates the clear command.
func NewClearCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clear",
		GroupID: "management",
		Short:   "Delete every place and link from the catalog",
		Long: `Clear deletes all canonical places and their layer links in batches.
Layer definitions are kept. This cannot be undone, so --yes is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.NewValidationError("yes", false, "clear deletes every place; pass --yes to confirm")
			}
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			if batchSize < 1 {
				return errors.NewValidationError("batch-size", batchSize, "must be at least 1")
			}

			store, err := app.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			deleted, err := store.ClearPlaces(cmd.Context(), batchSize)
			if err != nil {
				return errors.WrapResource("clear", "places", "", err)
			}

			app.Logger().Info().Int64("deleted", deleted).Msg("Catalog cleared")
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s places\n", emoji.Success, table.FormatNumber(deleted))
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Confirm deleting every place")
	cmd.Flags().Int("batch-size", constants.ClearBatchSize, "Rows deleted per statement")
	return cmd
}
