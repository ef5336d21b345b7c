package importer

import (
	"fmt"
	"io"
	"strconv"
	"time"

	md "github.com/nao1215/markdown"
)

// WriteMarkdown renders the report as a markdown document.
func (r *Report) WriteMarkdown(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	markdown := md.NewMarkdown(w)
	markdown.H2("Place import report").LF()

	mode := "write"
	if r.DryRun {
		mode = "dry run"
	}
	markdown.PlainText(fmt.Sprintf("Mode: %s. Finished in %s.", mode, r.Duration.Round(time.Millisecond))).LF()

	markdown.H3("Counts").LF()
	markdown.Table(md.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Lines read", strconv.Itoa(r.Read)},
			{"Matched filters", strconv.Itoa(r.Matched)},
			{"Imported/Updated", strconv.Itoa(r.Imported)},
			{"Skipped (dry run)", strconv.Itoa(r.Skipped)},
			{"Indexed", strconv.Itoa(r.Indexed)},
			{"Errors", strconv.Itoa(r.Errors)},
		},
	}).LF()

	if filters := r.filterRows(); len(filters) > 0 {
		markdown.H3("Filters").LF()
		markdown.Table(md.TableSet{
			Header: []string{"Filter", "Value"},
			Rows:   filters,
		}).LF()
	}

	if len(r.ErrorSamples) > 0 {
		markdown.H3("Sample errors").LF()
		markdown.BulletList(r.ErrorSamples...).LF()
	}

	return markdown.Build()
}

func (r *Report) filterRows() [][]string {
	var rows [][]string
	if r.Limit > 0 {
		rows = append(rows, []string{"limit", strconv.Itoa(r.Limit)})
	}
	if r.Filter.Category != "" {
		rows = append(rows, []string{"category", r.Filter.Category})
	}
	if r.Filter.State != "" {
		rows = append(rows, []string{"state", r.Filter.State})
	}
	if r.Filter.Country != "" {
		rows = append(rows, []string{"country", r.Filter.Country})
	}
	if b := r.Filter.Bounds; b != nil {
		rows = append(rows, []string{"bounds", fmt.Sprintf("N %.2f S %.2f E %.2f W %.2f", b.North, b.South, b.East, b.West)})
	}
	return rows
}
