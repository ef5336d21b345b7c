// Package imports provides the bulk import and clear commands.
package imports

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/cmd/emoji"
	"github.com/agentstation/placemap/internal/cmd/output"
	"github.com/agentstation/placemap/internal/cmd/table"
	"github.com/agentstation/placemap/internal/importer"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
)

// Application is what the import command needs beyond the shared
// application: object storage for s3:// sources and the search index.
type Application interface {
	application.Application
	ObjectStore() (importer.ObjectGetter, error)
	Indexer(ctx context.Context) (importer.Indexer, error)
}

// NewImportCommand creates the import command.
func NewImportCommand(app Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "import <path|s3://bucket/key>",
		GroupID: "management",
		Short:   "Import places from a newline-delimited JSON dump",
		Long: `Import reads Overture-style place records, one JSON object per line,
from a local file or an s3://bucket/key object and upserts them into the
catalog in batches. Files ending in .gz are decompressed.

Imports of more than 10,000 records ask for confirmation unless --yes is set.`,
		Example: `  placemap import places.ndjson --dry-run
  placemap import places.ndjson.gz --state NY --category restaurant
  placemap import s3://overture/places/us.ndjson --us-only --yes --report import.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, app, args[0])
		},
	}

	cmd.Flags().Int("limit", 0, "Stop after this many matching records (0 for all)")
	cmd.Flags().String("category", "", "Only import records with this primary category")
	cmd.Flags().String("state", "", "Only import records in this state or region")
	cmd.Flags().String("country", "", "Only import records in this country")
	cmd.Flags().Bool("us-only", false, "Only import records inside the United States bounding box")
	cmd.Flags().Bool("dry-run", false, "Transform and count records without writing")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation for large imports")
	cmd.Flags().Int("workers", constants.ImportWorkers, "Concurrent batch writers")
	cmd.Flags().Int("batch-size", constants.ImportBatchSize, "Places per upsert")
	cmd.Flags().String("report", "", "Write a markdown report to this path")
	cmd.Flags().Bool("index", false, "Mirror imported places into the search index")

	return cmd
}

func runImport(cmd *cobra.Command, app Application, location string) error {
	logger := app.Logger()
	ctx := cmd.Context()

	opts, err := parseOptions(cmd)
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")
	reportPath, _ := cmd.Flags().GetString("report")
	index, _ := cmd.Flags().GetBool("index")

	var objects importer.ObjectGetter
	if strings.HasPrefix(location, "s3://") {
		if objects, err = app.ObjectStore(); err != nil {
			return err
		}
	}

	store, err := app.Catalog(ctx)
	if err != nil {
		return err
	}

	var importOpts []importer.Option
	importOpts = append(importOpts,
		importer.WithLogger(logger),
		importer.WithProgress(func(processed int) {
			logger.Info().Int("processed", processed).Msg("Import progress")
		}),
	)
	if index && !opts.DryRun {
		idx, err := app.Indexer(ctx)
		if err != nil {
			return err
		}
		importOpts = append(importOpts, importer.WithIndexer(idx))
	}
	imp := importer.New(store, importOpts...)

	if !yes && !opts.DryRun {
		count, err := countRecords(ctx, imp, location, objects, opts)
		if err != nil {
			return err
		}
		if count > constants.ImportConfirmThreshold {
			prompt := fmt.Sprintf("%s About to import %s records. Continue? (y/N): ",
				emoji.Warning, table.FormatNumber(int64(count)))
			if !Confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Import cancelled")
				return nil
			}
		}
	}

	r, err := importer.Open(ctx, location, objects)
	if err != nil {
		return err
	}
	defer r.Close()

	logger.Info().
		Str("source", location).
		Int("limit", opts.Limit).
		Bool("dry_run", opts.DryRun).
		Int("workers", opts.Workers).
		Msg("Starting import")

	report, runErr := imp.Run(ctx, r, opts)
	if report != nil {
		if err := writeReport(cmd, app, report, reportPath); err != nil {
			return err
		}
	}
	return runErr
}

func parseOptions(cmd *cobra.Command) (importer.Options, error) {
	var opts importer.Options
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.Filter.Category, _ = cmd.Flags().GetString("category")
	opts.Filter.State, _ = cmd.Flags().GetString("state")
	opts.Filter.Country, _ = cmd.Flags().GetString("country")
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	opts.Workers, _ = cmd.Flags().GetInt("workers")
	opts.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	if usOnly, _ := cmd.Flags().GetBool("us-only"); usOnly {
		bounds := importer.USBounds
		opts.Filter.Bounds = &bounds
	}

	switch {
	case opts.Limit < 0:
		return opts, errors.NewValidationError("limit", opts.Limit, "must not be negative")
	case opts.Workers < 1:
		return opts, errors.NewValidationError("workers", opts.Workers, "must be at least 1")
	case opts.BatchSize < 1:
		return opts, errors.NewValidationError("batch-size", opts.BatchSize, "must be at least 1")
	}
	return opts, nil
}

// countRecords makes a first pass over the source to size the import.
func countRecords(ctx context.Context, imp *importer.Importer, location string, objects importer.ObjectGetter, opts importer.Options) (int, error) {
	r, err := importer.Open(ctx, location, objects)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return imp.Count(ctx, r, opts)
}

func writeReport(cmd *cobra.Command, app application.Application, report *importer.Report, path string) error {
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return errors.WrapIO("create", path, err)
		}
		if err := report.WriteMarkdown(f); err != nil {
			_ = f.Close()
			return errors.WrapIO("write", path, err)
		}
		if err := f.Close(); err != nil {
			return errors.WrapIO("close", path, err)
		}
		app.Logger().Info().Str("path", path).Msg("Import report written")
	}

	format := output.Format(app.OutputFormat())
	if format == output.FormatMarkdown {
		return report.WriteMarkdown(cmd.OutOrStdout())
	}
	var data any = report
	if output.IsTabular(format) {
		data = reportTable(report)
	}
	return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
}

func reportTable(r *importer.Report) output.Data {
	row := func(name string, n int) []string {
		return []string{name, table.FormatNumber(int64(n))}
	}
	return output.Data{
		Headers: []string{"METRIC", "VALUE"},
		Rows: [][]string{
			row("Lines read", r.Read),
			row("Matched filters", r.Matched),
			row("Imported/Updated", r.Imported),
			row("Skipped (dry run)", r.Skipped),
			row("Indexed", r.Indexed),
			row("Errors", r.Errors),
		},
		ColumnAlignment: []table.Align{table.AlignLeft, table.AlignRight},
	}
}

// Confirm asks a yes/no question and reports whether the answer was yes.
// Anything unreadable counts as no.
func Confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	var response string
	if _, err := fmt.Fscanln(in, &response); err != nil {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
