package linker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/linker"
)

const mappingYAML = `
sources:
  wheelmap: accessibility
  google: reviews
layers:
  - slug: accessibility
    name: Accessibility
    icon: wheelchair
  - slug: reviews
`

func TestLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mappingYAML), 0o600))

	m, err := linker.LoadMapping(path)
	require.NoError(t, err)

	assert.Equal(t, "accessibility", m.Resolve("wheelmap"))
	assert.Equal(t, "reviews", m.Resolve("google"))
	assert.Equal(t, "elastic", m.Resolve("elastic"))

	require.Len(t, m.Layers, 2)
	assert.Equal(t, "wheelchair", m.Layers[0].Icon)
	assert.Equal(t, "reviews", m.Layers[1].Name, "name defaults to slug")
}

func TestParseMappingErrors(t *testing.T) {
	_, err := linker.ParseMapping([]byte("layers:\n  - name: x\n"), "inline")
	assert.True(t, errors.IsValidationError(err))

	_, err = linker.ParseMapping([]byte("layers:\n  - slug: a\n  - slug: a\n"), "inline")
	assert.True(t, errors.IsValidationError(err))

	_, err = linker.ParseMapping([]byte("sources: [unclosed"), "inline")
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)

	_, err = linker.LoadMapping(filepath.Join(t.TempDir(), "missing.yaml"))
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestResolveNilMapping(t *testing.T) {
	var m *linker.LayerMapping
	assert.Equal(t, "google", m.Resolve("google"))
}
