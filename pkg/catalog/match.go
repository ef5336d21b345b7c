package catalog

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/similarity"
)

// Box is a latitude/longitude rectangle. A box that crosses the
// antimeridian has MinLon > MaxLon.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// CrossesAntimeridian reports whether the box wraps from +180 to -180.
func (b Box) CrossesAntimeridian() bool {
	return b.MinLon > b.MaxLon
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lat, lon float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.CrossesAntimeridian() {
		return lon >= b.MinLon || lon <= b.MaxLon
	}
	return lon >= b.MinLon && lon <= b.MaxLon
}

// BoundingBox returns a box that contains every point within radius meters of
// (lat, lon). It is used to prefilter candidates before exact distances.
// Near the antimeridian the longitude range wraps; a circle that reaches a
// pole spans every longitude.
func BoundingBox(lat, lon, radius float64) Box {
	dLat := radius / similarity.MetersPerDegree
	b := Box{MinLat: math.Max(lat-dLat, -90), MaxLat: math.Min(lat+dLat, 90), MinLon: -180, MaxLon: 180}
	if b.MinLat <= -90 || b.MaxLat >= 90 {
		return b
	}

	// The widest parallel of the circle is the one nearest a pole.
	cos := math.Cos(math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat)) * math.Pi / 180)
	dLon := radius / (similarity.MetersPerDegree * cos)
	if dLon >= 180 {
		return b
	}
	b.MinLon, b.MaxLon = lon-dLon, lon+dLon
	if b.MinLon < -180 {
		b.MinLon += 360
	}
	if b.MaxLon > 180 {
		b.MaxLon -= 360
	}
	return b
}

// BestMatch picks the candidate within radius whose name similarity is at
// least the link threshold. Higher similarity wins, then shorter distance,
// then the smaller id. It returns nil when nothing qualifies.
func BestMatch(candidates []places.Place, lat, lon float64, name string, radius float64) *places.Place {
	var (
		best     *places.Place
		bestSim  float64
		bestDist float64
	)
	for i := range candidates {
		c := &candidates[i]
		d := similarity.Distance(lat, lon, c.Lat, c.Lon)
		if d > radius {
			continue
		}
		sim := similarity.Name(name, c.Name)
		if sim < constants.LinkMatchThreshold {
			continue
		}
		if best == nil ||
			sim > bestSim ||
			(sim == bestSim && d < bestDist) ||
			(sim == bestSim && d == bestDist && c.ID < best.ID) {
			best, bestSim, bestDist = c, sim, d
		}
	}
	if best == nil {
		return nil
	}
	return best.Clone()
}

// Matches reports whether p satisfies the text and category filters of q.
func Matches(q places.SearchQuery, p *places.Place) bool {
	if q.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Query)) &&
		!strings.EqualFold(p.Brand, q.Query) {
		return false
	}
	if q.Category != "" && !strings.EqualFold(p.Category.Primary, q.Category) &&
		!slices.ContainsFunc(p.Category.Secondary, func(s string) bool { return strings.EqualFold(s, q.Category) }) {
		return false
	}
	return true
}

// Within keeps the places inside q.Radius that match q, sets their distance,
// orders them nearest first and applies q.Offset and q.Limit.
func Within(q places.SearchQuery, candidates []places.Place) []places.Place {
	out := make([]places.Place, 0, len(candidates))
	for i := range candidates {
		p := candidates[i].Clone()
		d := similarity.Distance(q.Lat, q.Lon, p.Lat, p.Lon)
		if d > q.Radius || !Matches(q, p) {
			continue
		}
		p.Distance = &d
		out = append(out, *p)
	}
	slices.SortStableFunc(out, func(a, b places.Place) int {
		return cmp.Or(cmp.Compare(*a.Distance, *b.Distance), cmp.Compare(a.ID, b.ID))
	})
	if q.Offset >= len(out) {
		return []places.Place{}
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
