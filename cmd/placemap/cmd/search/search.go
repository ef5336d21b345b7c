// Package search provides the search and place commands.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/cmd/output"
	"github.com/agentstation/placemap/internal/cmd/table"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search",
		GroupID: "core",
		Short:   "Search places around a point or inside a box",
		Long: `Search queries the catalog and every configured provider in parallel,
merges duplicate places and ranks them by confidence and distance.

Either --lat and --lon or --bounds is required.`,
		Example: `  placemap search --lat 40.7306 --lon -74.0021
  placemap search --lat 40.7306 --lon -74.0021 --radius 500 --query pizza
  placemap search --bounds 40.75,40.70,-73.95,-74.02 --category restaurant -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSearch(cmd, app)
		},
	}

	cmd.Flags().Float64("lat", 0, "Latitude of the search centre")
	cmd.Flags().Float64("lon", 0, "Longitude of the search centre")
	cmd.Flags().Float64("radius", constants.DefaultSearchRadius, "Search radius in meters")
	cmd.Flags().StringP("query", "s", "", "Free text matched against names and brands")
	cmd.Flags().String("category", "", "Category filter")
	cmd.Flags().Int("limit", constants.DefaultSearchLimit, "Maximum number of places")
	cmd.Flags().Int("offset", 0, "Number of places to skip")
	cmd.Flags().String("bounds", "", "Bounding box as north,south,east,west")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	cmd.MarkFlagsMutuallyExclusive("bounds", "lat")

	return cmd
}

func runSearch(cmd *cobra.Command, app application.Application) error {
	logger := app.Logger()

	q := places.SearchQuery{}
	q.Lat, _ = cmd.Flags().GetFloat64("lat")
	q.Lon, _ = cmd.Flags().GetFloat64("lon")
	q.Radius, _ = cmd.Flags().GetFloat64("radius")
	q.Query, _ = cmd.Flags().GetString("query")
	q.Category, _ = cmd.Flags().GetString("category")
	q.Limit, _ = cmd.Flags().GetInt("limit")
	q.Offset, _ = cmd.Flags().GetInt("offset")
	boundsFlag, _ := cmd.Flags().GetString("bounds")

	if boundsFlag == "" && !cmd.Flags().Changed("lat") {
		return errors.NewValidationError("lat", nil, "--lat and --lon or --bounds is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
	defer cancel()

	pm, err := app.Placemap(ctx)
	if err != nil {
		return err
	}

	var result *places.Result
	if boundsFlag != "" {
		bounds, err := ParseBounds(boundsFlag)
		if err != nil {
			return err
		}
		result, err = pm.SearchBounds(ctx, bounds, q)
		if err != nil {
			return err
		}
	} else {
		result, err = pm.Search(ctx, q)
		if err != nil {
			return err
		}
	}

	logger.Info().
		Int("count", result.Metadata.Count).
		Bool("cached", result.Metadata.Cached).
		Int64("latency_ms", result.Metadata.LatencyMS).
		Msgf("Found %d places", result.Metadata.Count)
	for _, status := range result.Metadata.Providers {
		if status.Error != "" {
			logger.Warn().Str("provider", status.Name).Str("error", status.Error).Msg("Provider failed")
		}
	}

	format := output.Format(app.OutputFormat())
	var data any = result
	if output.IsTabular(format) {
		data = table.PlacesToTableData(result.Places, format == output.FormatWide)
	}
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
}

// ParseBounds parses "north,south,east,west".
func ParseBounds(s string) (places.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return places.Bounds{}, errors.NewValidationError("bounds", s, "expected north,south,east,west")
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return places.Bounds{}, errors.NewValidationError("bounds", s, fmt.Sprintf("invalid number %q", part))
		}
		v[i] = f
	}
	b := places.Bounds{North: v[0], South: v[1], East: v[2], West: v[3]}
	if err := b.Validate(); err != nil {
		return places.Bounds{}, err
	}
	return b, nil
}
