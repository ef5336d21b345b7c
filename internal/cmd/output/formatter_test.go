package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/internal/cmd/table"
)

func sample() Data {
	return Data{
		Headers:         []string{"NAME", "COUNT"},
		Rows:            [][]string{{"google", "3"}, {"catalog", "12"}},
		ColumnAlignment: []table.Align{table.AlignLeft, table.AlignRight},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"md", FormatMarkdown, false},
		{"markdown", FormatMarkdown, false},
		{"wide", FormatWide, false},
		{"", "", false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
	assert.Equal(t, FormatMarkdown, DetectFormat("md"))
}

func TestIsTabular(t *testing.T) {
	assert.True(t, IsTabular(FormatTable))
	assert.True(t, IsTabular(FormatMarkdown))
	assert.False(t, IsTabular(FormatJSON))
	assert.False(t, IsTabular(FormatYAML))
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, sample()))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "google")
	assert.Contains(t, out, "catalog")
	assert.Contains(t, out, "12")
}

func TestTableFormatterFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, map[string]int{"count": 2}))
	assert.JSONEq(t, `{"count":2}`, buf.String())
}

func TestJSONAndYAMLFormatters(t *testing.T) {
	value := map[string]any{"name": "google", "healthy": true}

	var js bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&js, value))
	assert.JSONEq(t, `{"name":"google","healthy":true}`, js.String())

	var ys bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML).Format(&ys, value))
	assert.Contains(t, ys.String(), "name: google")
	assert.Contains(t, ys.String(), "healthy: true")
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatMarkdown).Format(&buf, sample()))

	out := buf.String()
	assert.Contains(t, out, "|")
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "google")
	assert.Contains(t, out, "catalog")

	buf.Reset()
	require.NoError(t, NewFormatter(FormatMarkdown).Format(&buf, map[string]int{"count": 2}))
	assert.Contains(t, buf.String(), "```json")
	assert.Contains(t, buf.String(), `"count": 2`)
}
