package importer

import (
	"strings"

	"github.com/agentstation/placemap/pkg/places"
)

// USBounds covers the continental US, Alaska and Hawaii.
var USBounds = places.Bounds{North: 72, South: 18, East: -65, West: -180}

// Filter selects which records are imported. Zero fields match everything.
type Filter struct {
	Category string         // primary category, exact
	State    string         // address region, case-insensitive
	Country  string         // address country, case-insensitive
	Bounds   *places.Bounds // coordinate box
}

// Match reports whether p passes every set criterion.
func (f Filter) Match(p *places.Place) bool {
	if f.Category != "" && p.Category.Primary != f.Category {
		return false
	}
	if f.State != "" && !strings.EqualFold(p.Address.State, f.State) {
		return false
	}
	if f.Country != "" && !strings.EqualFold(p.Address.Country, f.Country) {
		return false
	}
	if f.Bounds != nil && !f.Bounds.Contains(p.Lat, p.Lon) {
		return false
	}
	return true
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.Category == "" && f.State == "" && f.Country == "" && f.Bounds == nil
}
