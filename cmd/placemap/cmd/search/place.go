package search

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/cmd/output"
	"github.com/agentstation/placemap/internal/cmd/table"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
)

// NewPlaceCommand creates the place command.
func NewPlaceCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "place <id>",
		GroupID: "core",
		Short:   "Show one place by id",
		Long: `Place looks a place up in the catalog first and then asks each
provider by priority until one knows the id.`,
		Example: `  placemap place 5f0c6a4e-8d0b-4a43-9d4c-2f1f2c3b7e11
  placemap place ChIJN1t_tDeuEmsRUsoyG83frY4 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
			defer cancel()

			pm, err := app.Placemap(ctx)
			if err != nil {
				return err
			}
			p, err := pm.GetPlace(ctx, args[0])
			if err != nil {
				if errors.IsNotFound(err) {
					app.Logger().Debug().Str("place_id", args[0]).Msg("No provider knows the place")
				}
				return err
			}

			format := output.Format(app.OutputFormat())
			var data any = p
			if output.IsTabular(format) {
				data = table.PlaceToTableData(p)
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}
}
