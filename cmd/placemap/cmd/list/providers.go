// Package list provides the read-only inspection commands: providers,
// layers and health.
package list

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/cmd/output"
	"github.com/agentstation/placemap/internal/cmd/table"
	"github.com/agentstation/placemap/pkg/constants"
)

// NewProvidersCommand creates the providers command.
func NewProvidersCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "providers",
		GroupID: "core",
		Short:   "List configured providers by priority",
		Example: `  placemap providers
  placemap providers -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
			defer cancel()

			pm, err := app.Placemap(ctx)
			if err != nil {
				return err
			}
			infos := pm.Providers()

			format := output.Format(app.OutputFormat())
			var data any = infos
			if output.IsTabular(format) {
				data = table.ProvidersToTableData(infos)
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}
}

// NewLayersCommand creates the layers command.
func NewLayersCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "layers",
		GroupID: "core",
		Short:   "List the layers defined in the catalog",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
			defer cancel()

			pm, err := app.Placemap(ctx)
			if err != nil {
				return err
			}
			layers, err := pm.Layers(ctx)
			if err != nil {
				return err
			}
			app.Logger().Debug().Msgf("Found %d layers", len(layers))

			format := output.Format(app.OutputFormat())
			var data any = layers
			if output.IsTabular(format) {
				data = table.LayersToTableData(layers)
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}
}
