package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Version(t *testing.T) {
	app, _ := newTestApp(t)

	out, err := execute(t, app, "version")
	require.NoError(t, err)
	assert.Equal(t, "placemap 1.0.0\n", out)

	out, err = execute(t, app, "version", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "commit:   abc123")
}

func TestExecute_InvalidFormat(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := execute(t, app, "providers", "-o", "xml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestExecute_Search(t *testing.T) {
	app, _ := newTestApp(t)

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, app, "search", "--lat", "40.7306", "--lon", "-74.0021", "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"name": "Joe's Pizza"`)
		assert.Contains(t, out, `"count": 1`)
	})

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, app, "search", "--lat", "40.7306", "--lon", "-74.0021", "-s", "pizza", "-o", "table")
		require.NoError(t, err)
		assert.Contains(t, out, "Joe's Pizza")
		assert.Contains(t, out, "CONFIDENCE")
	})

	t.Run("bounds", func(t *testing.T) {
		out, err := execute(t, app, "search", "--bounds", "40.74,40.72,-73.99,-74.01", "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, "Joe's Pizza")
	})

	t.Run("requires a point or a box", func(t *testing.T) {
		_, err := execute(t, app, "search")
		assert.Error(t, err)
	})

	t.Run("rejects a malformed box", func(t *testing.T) {
		_, err := execute(t, app, "search", "--bounds", "1,2,3")
		assert.ErrorContains(t, err, "north,south,east,west")
	})
}

func TestExecute_Place(t *testing.T) {
	app, _ := newTestApp(t)

	out, err := execute(t, app, "place", "p1", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Joe's Pizza")
	assert.Contains(t, out, "restaurant")

	_, err = execute(t, app, "place", "missing")
	assert.Error(t, err)
}

func TestExecute_ProvidersLayersHealth(t *testing.T) {
	app, _ := newTestApp(t)

	out, err := execute(t, app, "providers", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"catalog"`)

	out, err = execute(t, app, "layers", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "slug: google")

	out, err = execute(t, app, "health", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "healthy"`)
}

func TestExecute_ImportAndClear(t *testing.T) {
	app, store := newTestApp(t)

	var lines []string
	for i := range 3 {
		lines = append(lines, fmt.Sprintf(
			`{"id":"ov%d","names":{"primary":"Cafe %d"},"confidence":0.8,"categories":{"primary":"cafe"},`+
				`"addresses":[{"region":"NY","country":"US"}],"geometry":{"type":"Point","coordinates":[-74.0,40.7%d]}}`, i, i, i))
	}
	lines = append(lines, `{"id":"bad"}`)
	path := filepath.Join(t.TempDir(), "places.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	t.Run("dry run writes nothing", func(t *testing.T) {
		out, err := execute(t, app, "import", path, "--dry-run", "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"skipped": 3`)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("import with report", func(t *testing.T) {
		report := filepath.Join(t.TempDir(), "report.md")
		out, err := execute(t, app, "import", path, "--yes", "--report", report, "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"imported": 3`)
		assert.Contains(t, out, `"errors": 1`)
		assert.Equal(t, 4, store.Len())

		md, err := os.ReadFile(report)
		require.NoError(t, err)
		assert.Contains(t, string(md), "Place import report")
	})

	t.Run("filters", func(t *testing.T) {
		out, err := execute(t, app, "import", path, "--dry-run", "--state", "CA", "-o", "json")
		require.NoError(t, err)
		assert.Contains(t, out, `"matched": 0`)
	})

	t.Run("s3 needs object storage", func(t *testing.T) {
		_, err := execute(t, app, "import", "s3://bucket/places.ndjson", "--yes")
		assert.ErrorContains(t, err, "minio")
	})

	t.Run("clear requires --yes", func(t *testing.T) {
		_, err := execute(t, app, "clear")
		assert.Error(t, err)
		assert.Equal(t, 4, store.Len())
	})

	t.Run("clear", func(t *testing.T) {
		out, err := execute(t, app, "clear", "--yes")
		require.NoError(t, err)
		assert.Contains(t, out, "Deleted 4 places")
		assert.Equal(t, 0, store.Len())
	})
}

func TestExecute_ConsumeRequiresBrokers(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := execute(t, app, "consume")
	assert.ErrorContains(t, err, "brokers")
}

func TestExecute_ServeRejectsAuthWithoutKey(t *testing.T) {
	app, _ := newTestApp(t)
	t.Setenv("API_KEY", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := app.createRootCommand()
	root.SetArgs([]string{"serve", "--auth"})
	err := root.ExecuteContext(ctx)
	assert.ErrorContains(t, err, "API_KEY")
}
