package linker

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
)

// LayerMapping resolves source names to layer slugs and carries the layer
// definitions to seed into the store.
//
//	sources:
//	  wheelmap: accessibility
//	  google: reviews
//	layers:
//	  - slug: accessibility
//	    name: Accessibility
//	    icon: wheelchair
type LayerMapping struct {
	Sources map[string]string `json:"sources" yaml:"sources"`
	Layers  []places.Layer    `json:"layers" yaml:"layers"`
}

// Resolve returns the layer slug for source. Unmapped sources use their own name.
func (m *LayerMapping) Resolve(source string) string {
	if m != nil {
		if slug, ok := m.Sources[source]; ok && slug != "" {
			return slug
		}
	}
	return source
}

// LoadMapping reads a mapping from a YAML file.
func LoadMapping(path string) (*LayerMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return ParseMapping(data, path)
}

// ParseMapping decodes a YAML mapping. name is used in error messages.
func ParseMapping(data []byte, name string) (*LayerMapping, error) {
	var m LayerMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapParse("yaml", name, err)
	}
	if m.Sources == nil {
		m.Sources = map[string]string{}
	}
	seen := make(map[string]bool, len(m.Layers))
	for i, l := range m.Layers {
		slug := strings.TrimSpace(l.Slug)
		if slug == "" {
			return nil, errors.NewValidationError("layers", i, "layer slug is required")
		}
		if seen[slug] {
			return nil, errors.NewValidationError("layers", slug, "duplicate layer slug")
		}
		seen[slug] = true
		m.Layers[i].Slug = slug
		if m.Layers[i].Name == "" {
			m.Layers[i].Name = slug
		}
	}
	return &m, nil
}
