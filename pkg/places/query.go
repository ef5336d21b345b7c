package places

import (
	"math"
	"strings"

	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/similarity"
)

// SearchQuery is a geospatial search request.
type SearchQuery struct {
	Lat      float64 `json:"lat" yaml:"lat"`
	Lon      float64 `json:"lon" yaml:"lon"`
	Radius   float64 `json:"radius,omitempty" yaml:"radius,omitempty"` // Meters, defaults to 1000
	Query    string  `json:"query,omitempty" yaml:"query,omitempty"`   // Free text
	Category string  `json:"category,omitempty" yaml:"category,omitempty"`
	Limit    int     `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Normalize fills defaults and caps the limit. It returns the receiver.
func (q *SearchQuery) Normalize() *SearchQuery {
	if q.Radius <= 0 {
		q.Radius = constants.DefaultSearchRadius
	}
	if q.Limit <= 0 {
		q.Limit = constants.DefaultSearchLimit
	}
	if q.Limit > constants.MaxSearchLimit {
		q.Limit = constants.MaxSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Query = strings.TrimSpace(q.Query)
	q.Category = strings.TrimSpace(q.Category)
	return q
}

// Validate checks the query ranges.
func (q *SearchQuery) Validate() error {
	switch {
	case math.IsNaN(q.Lat) || q.Lat < -90 || q.Lat > 90:
		return errors.NewValidationError("lat", q.Lat, "must be between -90 and 90")
	case math.IsNaN(q.Lon) || q.Lon < -180 || q.Lon > 180:
		return errors.NewValidationError("lon", q.Lon, "must be between -180 and 180")
	case math.IsNaN(q.Radius) || q.Radius < 0 || q.Radius > constants.MaxSearchRadius:
		return errors.NewValidationError("radius", q.Radius, "must be between 0 and 50000 meters")
	case q.Limit < 0:
		return errors.NewValidationError("limit", q.Limit, "must not be negative")
	case q.Offset < 0:
		return errors.NewValidationError("offset", q.Offset, "must not be negative")
	}
	return nil
}

// Bounds is a latitude/longitude box.
type Bounds struct {
	North float64 `json:"north" yaml:"north"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	West  float64 `json:"west" yaml:"west"`
}

// Validate checks ordering and ranges. Boxes crossing the antimeridian are rejected.
func (b Bounds) Validate() error {
	switch {
	case math.IsNaN(b.North) || math.IsNaN(b.South) || math.IsNaN(b.East) || math.IsNaN(b.West):
		return errors.NewValidationError("bounds", b, "must be numbers")
	case b.North < -90 || b.North > 90 || b.South < -90 || b.South > 90:
		return errors.NewValidationError("bounds", b, "latitudes must be between -90 and 90")
	case b.East < -180 || b.East > 180 || b.West < -180 || b.West > 180:
		return errors.NewValidationError("bounds", b, "longitudes must be between -180 and 180")
	case b.North < b.South:
		return errors.NewValidationError("bounds", b, "north must not be below south")
	case b.East < b.West:
		return errors.NewValidationError("bounds", b, "east must not be west of west")
	}
	return nil
}

// Center returns the midpoint of the box.
func (b Bounds) Center() (lat, lon float64) {
	return (b.North + b.South) / 2, (b.East + b.West) / 2
}

// Radius returns the distance in meters from the centre to the farthest corner.
func (b Bounds) Radius() float64 {
	lat, lon := b.Center()
	return math.Max(
		similarity.Distance(lat, lon, b.North, b.East),
		similarity.Distance(lat, lon, b.South, b.West),
	)
}

// Contains reports whether the point lies inside the box, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat <= b.North && lat >= b.South && lon <= b.East && lon >= b.West
}
