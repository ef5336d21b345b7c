package importer

import (
	"encoding/json"
	"strings"

	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
)

// SourceName is the cross-reference key recorded on imported places.
const SourceName = "overture"

// Record is one Overture Maps place as exported to newline-delimited JSON.
// GeoJSON features are accepted too; their properties are read as a Record.
type Record struct {
	Type       string          `json:"type,omitempty"`
	ID         string          `json:"id"`
	Names      Names           `json:"names"`
	Confidence float64         `json:"confidence"`
	Categories *Categories     `json:"categories,omitempty"`
	Brand      *Brand          `json:"brand,omitempty"`
	Status     string          `json:"operating_status,omitempty"`
	Websites   []string        `json:"websites,omitempty"`
	Socials    []string        `json:"socials,omitempty"`
	Phones     []string        `json:"phones,omitempty"`
	Emails     []string        `json:"emails,omitempty"`
	Addresses  []RecordAddress `json:"addresses,omitempty"`
	BBox       *BBox           `json:"bbox,omitempty"`
	Geometry   *Geometry       `json:"geometry,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`

	// Carried into the raw payload
	Sources       json.RawMessage `json:"sources,omitempty"`
	Version       json.RawMessage `json:"version,omitempty"`
	BasicCategory string          `json:"basic_category,omitempty"`
}

// Names holds the name variants of a record.
type Names struct {
	Primary string `json:"primary"`
}

// Categories classifies a record.
type Categories struct {
	Primary   string   `json:"primary"`
	Alternate []string `json:"alternate,omitempty"`
}

// Brand is the brand a record belongs to.
type Brand struct {
	Names Names `json:"names"`
}

// RecordAddress is one address of a record.
type RecordAddress struct {
	Freeform string `json:"freeform,omitempty"`
	Locality string `json:"locality,omitempty"`
	Region   string `json:"region,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// BBox is the bounding box of a record's geometry.
type BBox struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// Geometry is a GeoJSON geometry. Only points carry a usable location.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// ParseRecord decodes one line. GeoJSON features are flattened so that their
// properties fill the record while the top-level id and geometry win.
func ParseRecord(line []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(line, &r); err != nil {
		return nil, err
	}
	if len(r.Properties) == 0 || string(r.Properties) == "null" {
		return &r, nil
	}

	var props Record
	if err := json.Unmarshal(r.Properties, &props); err != nil {
		return nil, err
	}
	if r.ID != "" {
		props.ID = r.ID
	}
	if r.Geometry != nil {
		props.Geometry = r.Geometry
	}
	if r.BBox != nil {
		props.BBox = r.BBox
	}
	return &props, nil
}

// Location returns lon/lat from a point geometry, falling back to the centre
// of the bounding box.
func (r *Record) Location() (lon, lat float64, ok bool) {
	if g := r.Geometry; g != nil && strings.EqualFold(g.Type, "Point") && len(g.Coordinates) >= 2 {
		return g.Coordinates[0], g.Coordinates[1], true
	}
	if b := r.BBox; b != nil {
		return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2, true
	}
	return 0, 0, false
}

// Address returns the first address of the record.
func (r *Record) Address() places.Address {
	if len(r.Addresses) == 0 {
		return places.Address{}
	}
	a := r.Addresses[0]
	return places.Address{
		Street:   a.Freeform,
		City:     a.Locality,
		State:    a.Region,
		Postcode: a.Postcode,
		Country:  a.Country,
	}
}

// ToPlace converts the record into a canonical place keyed by the record id.
func (r *Record) ToPlace() (*places.Place, error) {
	if r.ID == "" {
		return nil, errors.NewValidationError("id", nil, "is required")
	}
	if strings.TrimSpace(r.Names.Primary) == "" {
		return nil, errors.NewValidationError("names.primary", nil, "is required")
	}
	lon, lat, ok := r.Location()
	if !ok {
		return nil, errors.NewValidationError("geometry", nil, "record has neither a point geometry nor a bbox")
	}

	p := &places.Place{
		ID:              r.ID,
		Name:            strings.TrimSpace(r.Names.Primary),
		Lat:             lat,
		Lon:             lon,
		Confidence:      places.ClampConfidence(r.Confidence),
		Address:         r.Address(),
		OperatingStatus: r.Status,
		Contacts: places.Contacts{
			Websites: r.Websites,
			Socials:  r.Socials,
			Phones:   r.Phones,
			Emails:   r.Emails,
		},
	}
	if r.Categories != nil {
		p.Category = places.Category{Primary: r.Categories.Primary, Secondary: r.Categories.Alternate}
	}
	if r.Brand != nil {
		p.Brand = r.Brand.Names.Primary
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	raw := map[string]any{}
	if len(r.Sources) > 0 {
		raw["sources"] = r.Sources
	}
	if r.BBox != nil {
		raw["bbox"] = r.BBox
	}
	if len(r.Version) > 0 {
		raw["version"] = r.Version
	}
	if r.BasicCategory != "" {
		raw["basic_category"] = r.BasicCategory
	}
	ref := places.SourceRef{ExternalID: r.ID}
	if len(raw) > 0 {
		ref.Raw = raw
	}
	p.AddSource(SourceName, ref)

	return p, nil
}
