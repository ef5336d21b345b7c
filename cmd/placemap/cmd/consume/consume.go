// Package consume provides the consume command, which links observed places
// read from Kafka.
package consume

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/cmd/emoji"
	"github.com/agentstation/placemap/internal/stream"
	"github.com/agentstation/placemap/pkg/linker"
)

// Application is what the consume command needs beyond the shared
// application.
type Application interface {
	application.Application
	ObservationReader() (stream.Reader, error)
}

// NewCommand creates the consume command.
func NewCommand(app Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "consume",
		GroupID: "core",
		Short:   "Link place observations read from Kafka",
		Long: `Consume reads {"source": ..., "place": {...}} messages from the
observations topic and links each one against the catalog. Offsets are
committed after every message, including messages that fail to link;
failures are logged. The consumer stops cleanly on SIGINT or SIGTERM.

Brokers, topic and group come from KAFKA_BROKERS,
KAFKA_OBSERVATIONS_TOPIC and KAFKA_GROUP_ID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backoff, _ := cmd.Flags().GetDuration("backoff")
			ctx := cmd.Context()
			logger := app.Logger()

			pm, err := app.Placemap(ctx)
			if err != nil {
				return err
			}
			reader, err := app.ObservationReader()
			if err != nil {
				return err
			}

			consumer := stream.NewConsumer(reader, pm,
				stream.WithConsumerLogger(logger),
				stream.WithBackoff(backoff),
			)
			if err := consumer.Run(ctx); err != nil {
				return err
			}

			stats := consumer.Stats()
			fmt.Fprintf(cmd.ErrOrStderr(), "%s Processed %d messages: %d created, %d linked, %d updated, %d touched, %d invalid, %d failed\n",
				emoji.Success, stats.Messages,
				stats.Outcomes[linker.Created], stats.Outcomes[linker.Linked],
				stats.Outcomes[linker.Updated], stats.Outcomes[linker.Touched],
				stats.Invalid, stats.Failed)
			return nil
		},
	}
	cmd.Flags().Duration("backoff", time.Second, "Pause after a failed fetch")
	return cmd
}
