package imports

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/internal/importer"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		assert.Equal(t, tt.want, Confirm(strings.NewReader(tt.in), &out, "Continue? "), "input %q", tt.in)
		assert.Equal(t, "Continue? ", out.String())
	}
}

func TestParseOptions(t *testing.T) {
	cmd := NewImportCommand(nil)
	require.NoError(t, cmd.ParseFlags([]string{"--limit", "10", "--state", "NY", "--us-only", "--workers", "2"}))

	opts, err := parseOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, "NY", opts.Filter.State)
	assert.Equal(t, 2, opts.Workers)
	require.NotNil(t, opts.Filter.Bounds)
	assert.Equal(t, importer.USBounds, *opts.Filter.Bounds)

	bad := NewImportCommand(nil)
	require.NoError(t, bad.ParseFlags([]string{"--workers", "0"}))
	_, err = parseOptions(bad)
	assert.Error(t, err)
}

func TestReportTable(t *testing.T) {
	data := reportTable(&importer.Report{Read: 12000, Matched: 10, Imported: 9, Errors: 1})
	require.Len(t, data.Rows, 6)
	assert.Equal(t, []string{"Lines read", "12,000"}, data.Rows[0])
	assert.Equal(t, []string{"Errors", "1"}, data.Rows[5])
}
