package list

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/cmd/output"
	"github.com/agentstation/placemap/internal/cmd/table"
	"github.com/agentstation/placemap/pkg/constants"
)

// HealthReport is the structured output of the health command.
type HealthReport struct {
	Status    string          `json:"status" yaml:"status"`
	Providers map[string]bool `json:"providers" yaml:"providers"`
}

// NewHealthCommand creates the health command.
func NewHealthCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "health",
		GroupID: "core",
		Short:   "Check the health of every provider",
		Long: `Health probes every provider concurrently. A degraded result, where
some providers are down, still exits with status 0 unless --strict is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			strict, _ := cmd.Flags().GetBool("strict")

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
			defer cancel()

			pm, err := app.Placemap(ctx)
			if err != nil {
				return err
			}
			status := pm.HealthCheck(ctx)
			report := HealthReport{Status: placemap.HealthStatus(status), Providers: status}

			format := output.Format(app.OutputFormat())
			var data any = report
			if output.IsTabular(format) {
				data = table.HealthToTableData(status)
			}
			if err := output.NewFormatter(format).Format(cmd.OutOrStdout(), data); err != nil {
				return err
			}

			switch {
			case report.Status == placemap.StatusUnavailable:
				return fmt.Errorf("no provider is healthy")
			case strict && report.Status != placemap.StatusHealthy:
				return fmt.Errorf("placemap is %s", report.Status)
			}
			return nil
		},
	}
	cmd.Flags().Bool("strict", false, "Fail unless every provider is healthy")
	return cmd
}
