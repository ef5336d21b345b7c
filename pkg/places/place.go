// Package places defines the shared data model of the placemap engine:
// canonical places, search queries, layers and the links between them.
package places

import (
	"slices"

	"github.com/agentstation/placemap/pkg/errors"
)

// Place is a point of interest.
type Place struct {
	// Identity
	ID   string `json:"id" yaml:"id"`     // Unique within the authoritative store
	Name string `json:"name" yaml:"name"` // Display name

	// Location
	Lat float64 `json:"lat" yaml:"lat"` // Latitude in [-90, 90]
	Lon float64 `json:"lon" yaml:"lon"` // Longitude in [-180, 180]

	// Classification and quality
	Category   Category `json:"category" yaml:"category"`
	Confidence float64  `json:"confidence" yaml:"confidence"` // Data quality estimate in [0, 1]

	// Descriptive data
	Contacts        Contacts `json:"contacts" yaml:"contacts"`
	Address         Address  `json:"address" yaml:"address"`
	Brand           string   `json:"brand,omitempty" yaml:"brand,omitempty"`
	OperatingStatus string   `json:"operating_status,omitempty" yaml:"operating_status,omitempty"`

	// Provenance
	Sources    map[string]SourceRef `json:"sources,omitempty" yaml:"sources,omitempty"`       // Cross references keyed by source name
	Attributes *Attributes          `json:"attributes,omitempty" yaml:"attributes,omitempty"` // Opaque source metadata

	// Query-relative data, never persisted
	Distance *float64  `json:"distance,omitempty" yaml:"distance,omitempty"` // Meters from the query centre
	Layers   []Overlay `json:"layers,omitempty" yaml:"layers,omitempty"`     // Attached layer overlays
}

// Category classifies a place.
type Category struct {
	Primary   string   `json:"primary,omitempty" yaml:"primary,omitempty"`
	Secondary []string `json:"secondary,omitempty" yaml:"secondary,omitempty"`
}

// Contacts holds contact lists. Each list is a set; order carries no meaning.
type Contacts struct {
	Socials  []string `json:"socials,omitempty" yaml:"socials,omitempty"`
	Websites []string `json:"websites,omitempty" yaml:"websites,omitempty"`
	Phones   []string `json:"phones,omitempty" yaml:"phones,omitempty"`
	Emails   []string `json:"emails,omitempty" yaml:"emails,omitempty"`
}

// Address is a postal address.
type Address struct {
	Street   string `json:"street,omitempty" yaml:"street,omitempty"`
	City     string `json:"city,omitempty" yaml:"city,omitempty"`
	State    string `json:"state,omitempty" yaml:"state,omitempty"`
	Postcode string `json:"postcode,omitempty" yaml:"postcode,omitempty"`
	Country  string `json:"country,omitempty" yaml:"country,omitempty"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// SourceRef is the cross reference of a place into one source.
type SourceRef struct {
	ExternalID string `json:"external_id" yaml:"external_id"`
	Raw        any    `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// Overlay is a layer link as attached to a search result.
type Overlay struct {
	Slug string      `json:"slug" yaml:"slug"`
	Name string      `json:"name" yaml:"name"`
	Icon string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Data *Attributes `json:"data,omitempty" yaml:"data,omitempty"`
}

// Validate checks coordinate and confidence ranges.
func (p *Place) Validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return errors.NewValidationError("lat", p.Lat, "must be between -90 and 90")
	}
	if p.Lon < -180 || p.Lon > 180 {
		return errors.NewValidationError("lon", p.Lon, "must be between -180 and 180")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return errors.NewValidationError("confidence", p.Confidence, "must be between 0 and 1")
	}
	return nil
}

// ClampConfidence forces c into [0, 1].
func ClampConfidence(c float64) float64 {
	return min(max(c, 0), 1)
}

// AddSource records a cross reference, replacing any existing one for source.
func (p *Place) AddSource(source string, ref SourceRef) {
	if p.Sources == nil {
		p.Sources = make(map[string]SourceRef)
	}
	p.Sources[source] = ref
}

// SourceNames returns the cross reference keys in sorted order.
func (p *Place) SourceNames() []string {
	names := make([]string, 0, len(p.Sources))
	for name := range p.Sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns a deep copy. Raw payloads inside source references are shared.
func (p *Place) Clone() *Place {
	if p == nil {
		return nil
	}
	c := *p
	c.Category.Secondary = slices.Clone(p.Category.Secondary)
	c.Contacts = Contacts{
		Socials:  slices.Clone(p.Contacts.Socials),
		Websites: slices.Clone(p.Contacts.Websites),
		Phones:   slices.Clone(p.Contacts.Phones),
		Emails:   slices.Clone(p.Contacts.Emails),
	}
	if p.Sources != nil {
		c.Sources = make(map[string]SourceRef, len(p.Sources))
		for k, v := range p.Sources {
			c.Sources[k] = v
		}
	}
	c.Attributes = p.Attributes.Clone()
	if p.Distance != nil {
		d := *p.Distance
		c.Distance = &d
	}
	if p.Layers != nil {
		c.Layers = make([]Overlay, len(p.Layers))
		for i, o := range p.Layers {
			o.Data = o.Data.Clone()
			c.Layers[i] = o
		}
	}
	return &c
}

// WithDistance sets the query-relative distance in meters.
func (p *Place) WithDistance(meters float64) *Place {
	p.Distance = &meters
	return p
}
