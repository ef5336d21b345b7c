// Package importer bulk-loads Overture Maps place records into the catalog.
//
// Input is newline-delimited JSON read from a local file or an S3 object.
// Records are transformed into canonical places, filtered, and upserted by id
// in batches on a bounded worker pool. A batch the store rejects is retried
// one place at a time so that a single bad record costs only itself.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/logging"
	"github.com/agentstation/placemap/pkg/places"
)

// Writer persists places. catalog.Store satisfies it.
type Writer interface {
	UpsertPlaces(ctx context.Context, ps []places.Place) (int, error)
}

// Indexer mirrors written places into a search index.
type Indexer interface {
	IndexPlaces(ctx context.Context, ps []places.Place) (int, error)
}

// Options control one import run.
type Options struct {
	Limit     int    // stop after this many matching records; 0 means all
	Filter    Filter // record selection
	DryRun    bool   // transform and count without writing
	BatchSize int    // places per upsert
	Workers   int    // concurrent batch writers
}

// Importer runs imports against a writer.
type Importer struct {
	writer   Writer
	indexer  Indexer
	logger   *zerolog.Logger
	progress func(processed int)
}

// Option configures an Importer.
type Option func(*Importer)

// WithIndexer mirrors every written batch into idx.
func WithIndexer(idx Indexer) Option {
	return func(i *Importer) {
		i.indexer = idx
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after each batch with the
// number of records written or rejected so far.
func WithProgress(fn func(processed int)) Option {
	return func(i *Importer) {
		i.progress = fn
	}
}

// New creates an importer writing to w.
func New(w Writer, opts ...Option) *Importer {
	nop := zerolog.Nop()
	i := &Importer{writer: w, logger: &nop}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Count scans r and returns how many records would be imported under opts.
// Records that fail to parse are not counted.
func (i *Importer) Count(ctx context.Context, r io.Reader, opts Options) (int, error) {
	total := 0
	_, err := scan(ctx, r, opts, func(_ int, _ *places.Place, err error) bool {
		if err == nil {
			total++
		}
		return true
	})
	return total, err
}

// Run imports every matching record from r. The report is returned even when
// the run stops early on cancellation or a read error.
func (i *Importer) Run(ctx context.Context, r io.Reader, opts Options) (*Report, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = constants.ImportBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = constants.ImportWorkers
	}

	ctx = logging.WithOperation(logging.WithLogger(ctx, i.logger), "import")
	logger := logging.FromContext(ctx)

	report := newReport(opts)
	started := time.Now()
	p := pool.New().WithMaxGoroutines(opts.Workers)

	batch := make([]places.Place, 0, opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		b := batch
		batch = make([]places.Place, 0, opts.BatchSize)
		if opts.DryRun {
			report.skip(len(b))
			return
		}
		p.Go(func() {
			i.writeBatch(ctx, b, report)
		})
	}

	lines, scanErr := scan(ctx, r, opts, func(line int, pl *places.Place, err error) bool {
		if err != nil {
			report.fail(fmt.Sprintf("Transform error on line %d: %v", line, err))
			return true
		}
		report.match()
		batch = append(batch, *pl)
		if len(batch) == opts.BatchSize {
			flush()
		}
		return true
	})
	flush()
	p.Wait()

	report.Read = lines
	report.Duration = time.Since(started)
	err := scanErr
	if err == nil {
		err = ctx.Err()
	}

	event := logger.Info()
	msg := "Import finished"
	if errors.IsCanceled(err) {
		event, msg = logger.Warn(), "Import canceled"
	}
	event.
		Int("read", report.Read).
		Int("matched", report.Matched).
		Int("imported", report.Imported).
		Int("errors", report.Errors).
		Bool("dry_run", opts.DryRun).
		Dur("duration", report.Duration).
		Msg(msg)

	return report, err
}

// writeBatch upserts a batch, falling back to one-by-one writes when the
// store rejects it as a whole.
func (i *Importer) writeBatch(ctx context.Context, batch []places.Place, report *Report) {
	if ctx.Err() != nil {
		report.failN(len(batch), "Import canceled before batch was written")
		return
	}

	written := batch
	if _, err := i.writer.UpsertPlaces(ctx, batch); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Int("size", len(batch)).Msg("Batch upsert failed, retrying one by one")
		written = make([]places.Place, 0, len(batch))
		for _, pl := range batch {
			if _, err := i.writer.UpsertPlaces(ctx, []places.Place{pl}); err != nil {
				report.fail(fmt.Sprintf("Insert error for %s: %v", pl.ID, err))
				continue
			}
			written = append(written, pl)
		}
	}
	report.imported(len(written))

	if i.indexer != nil && len(written) > 0 {
		n, err := i.indexer.IndexPlaces(ctx, written)
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Int("size", len(written)).Msg("Failed to mirror batch into search index")
		}
		report.indexed(n)
	}

	if i.progress != nil {
		i.progress(report.processed())
	}
}

// maxLineSize bounds a single record; Overture rows with long source lists
// run to tens of kilobytes.
const maxLineSize = 4 << 20

// scan decodes r line by line and calls fn with each transformed place that
// passes the filter, or with the transform error. It stops after opts.Limit
// matches, when fn returns false, or when ctx is done, and returns the number
// of non-empty lines read.
func scan(ctx context.Context, r io.Reader, opts Options, fn func(line int, p *places.Place, err error) bool) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	line, read, matched := 0, 0, 0
	for sc.Scan() {
		if ctx.Err() != nil {
			return read, ctx.Err()
		}
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		read++

		rec, err := ParseRecord(raw)
		var p *places.Place
		if err == nil {
			p, err = rec.ToPlace()
		}
		if err != nil {
			if !fn(line, nil, err) {
				return read, nil
			}
			continue
		}
		if !opts.Filter.Match(p) {
			continue
		}

		matched++
		if !fn(line, p, nil) {
			return read, nil
		}
		if opts.Limit > 0 && matched >= opts.Limit {
			return read, nil
		}
	}
	if err := sc.Err(); err != nil {
		return read, fmt.Errorf("reading records: %w", err)
	}
	return read, nil
}

// Report summarises an import run.
type Report struct {
	Filter       Filter        `json:"filter" yaml:"filter"`
	Limit        int           `json:"limit,omitempty" yaml:"limit,omitempty"`
	DryRun       bool          `json:"dry_run" yaml:"dry_run"`
	Read         int           `json:"read" yaml:"read"`         // non-empty lines, including rejected and filtered ones
	Matched      int           `json:"matched" yaml:"matched"`   // records that passed the filter
	Imported     int           `json:"imported" yaml:"imported"` // places upserted
	Skipped      int           `json:"skipped" yaml:"skipped"`   // places not written because of a dry run
	Indexed      int           `json:"indexed" yaml:"indexed"`   // places mirrored into the search index
	Errors       int           `json:"errors" yaml:"errors"`
	ErrorSamples []string      `json:"error_samples,omitempty" yaml:"error_samples,omitempty"`
	Duration     time.Duration `json:"duration" yaml:"duration"`

	mu sync.Mutex
}

func newReport(opts Options) *Report {
	return &Report{Filter: opts.Filter, Limit: opts.Limit, DryRun: opts.DryRun}
}

func (r *Report) match() {
	r.mu.Lock()
	r.Matched++
	r.mu.Unlock()
}

func (r *Report) skip(n int) {
	r.mu.Lock()
	r.Skipped += n
	r.mu.Unlock()
}

func (r *Report) imported(n int) {
	r.mu.Lock()
	r.Imported += n
	r.mu.Unlock()
}

func (r *Report) indexed(n int) {
	r.mu.Lock()
	r.Indexed += n
	r.mu.Unlock()
}

func (r *Report) fail(sample string) {
	r.failN(1, sample)
}

func (r *Report) failN(n int, sample string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors += n
	if len(r.ErrorSamples) < constants.ImportErrorSamples {
		r.ErrorSamples = append(r.ErrorSamples, sample)
	}
}

func (r *Report) processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Imported + r.Errors
}
