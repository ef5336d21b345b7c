// Package dedup groups near-duplicate places, merges each group into one
// place and ranks the result.
//
// Candidate pairs are found through a spatial grid: every place is bucketed
// into a cell of Config.CellSize degrees and compared only with places in a
// ring of cells around its own. The ring is sized per axis so that any two
// places within Config.CompareRadius meters are always compared. Longitude
// cells narrow with latitude, so the ring widens toward the poles. With the
// defaults (0.001° cells, 150 m) places more than 450 m apart are never
// compared, which keeps the pass near linear in the number of places.
package dedup

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/similarity"
)

// Merger deduplicates and ranks places. It is safe for concurrent use.
type Merger struct {
	cfg    Config
	logger *zerolog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets the logger used for merge diagnostics.
func WithLogger(logger *zerolog.Logger) Option {
	return func(m *Merger) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMerger creates a Merger. Zero fields of cfg take their defaults.
func NewMerger(cfg Config, opts ...Option) *Merger {
	nop := zerolog.Nop()
	m := &Merger{cfg: cfg.withDefaults(), logger: &nop}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the effective configuration.
func (m *Merger) Config() Config {
	return m.cfg
}

type cell struct {
	lat, lon int64
}

// Merge returns the deduplicated places ranked by score, at most limit of
// them (no bound when limit <= 0). The input is not modified and the output
// does not depend on input order.
func (m *Merger) Merge(in []places.Place, limit int) []places.Place {
	if len(in) == 0 {
		return []places.Place{}
	}

	sorted := make([]*places.Place, len(in))
	for i := range in {
		sorted[i] = in[i].Clone()
	}
	slices.SortStableFunc(sorted, canonicalOrder)

	buckets := make(map[cell][]int, len(sorted))
	for i, p := range sorted {
		c := m.cellOf(p)
		buckets[c] = append(buckets[c], i)
	}

	resolved := make([]bool, len(sorted))
	seen := make(map[string]bool, len(sorted))
	out := make([]places.Place, 0, len(sorted))
	merges := 0

	for i, seed := range sorted {
		if resolved[i] || seen[Fingerprint(seed)] {
			resolved[i] = true
			continue
		}
		resolved[i] = true
		seen[Fingerprint(seed)] = true

		group := seed.Clone()
		for _, j := range m.candidates(seed, buckets) {
			if resolved[j] {
				continue
			}
			cand := sorted[j]
			if !m.IsDuplicate(seed, cand) {
				continue
			}
			resolved[j] = true
			seen[Fingerprint(cand)] = true
			group = mergePair(group, cand)
			merges++
		}
		out = append(out, *group)
	}

	slices.SortStableFunc(out, func(a, b places.Place) int {
		if c := cmp.Compare(m.Score(&b), m.Score(&a)); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	m.logger.Debug().
		Int("input", len(in)).
		Int("merged", merges).
		Int("output", len(out)).
		Msg("Deduplicated places")
	return out
}

// IsDuplicate reports whether a and b denote the same place.
func (m *Merger) IsDuplicate(a, b *places.Place) bool {
	sim := similarity.Name(a.Name, b.Name)
	if sim > m.cfg.NameThreshold {
		return true
	}
	if sim <= m.cfg.FuzzyNameThreshold {
		return false
	}
	if !strings.EqualFold(a.Category.Primary, b.Category.Primary) {
		return false
	}
	return similarity.Distance(a.Lat, a.Lon, b.Lat, b.Lon) < m.cfg.Radius
}

// Score ranks a place: its confidence plus a bonus that decays linearly with
// distance from the query centre. Places without a distance get no bonus.
func (m *Merger) Score(p *places.Place) float64 {
	if p.Distance == nil {
		return p.Confidence
	}
	return p.Confidence + m.cfg.RankWeight*(1-math.Min(*p.Distance/m.cfg.RankDistance, 1))
}

// Fingerprint identifies a place by lower-cased name and coordinates rounded
// to six decimals.
func Fingerprint(p *places.Place) string {
	return fmt.Sprintf("%s|%.6f|%.6f", strings.ToLower(p.Name), p.Lat, p.Lon)
}

func (m *Merger) cellOf(p *places.Place) cell {
	return cell{
		lat: int64(math.Floor(p.Lat / m.cfg.CellSize)),
		lon: int64(math.Floor(p.Lon / m.cfg.CellSize)),
	}
}

// ring returns how many cells on each side of p's cell must be searched to
// reach every place within CompareRadius.
func (m *Merger) ring(p *places.Place) (rLat, rLon int64) {
	cellMeters := similarity.MetersPerDegree * m.cfg.CellSize
	rLat = int64(math.Ceil(m.cfg.CompareRadius / cellMeters))

	// Use the latitude farthest from the equator the ring can reach, where
	// longitude cells are narrowest.
	phi := math.Min(math.Abs(p.Lat)+float64(rLat)*m.cfg.CellSize, 90)
	cos := math.Cos(phi * math.Pi / 180)
	if cos < 1e-9 {
		return rLat, math.MaxInt32
	}
	rLon = int64(math.Ceil(m.cfg.CompareRadius / (cellMeters * cos)))
	return rLat, min(rLon, math.MaxInt32)
}

// candidates returns the indices of the places in the ring around p,
// ascending.
func (m *Merger) candidates(p *places.Place, buckets map[cell][]int) []int {
	c := m.cellOf(p)
	rLat, rLon := m.ring(p)

	var out []int
	if (2*rLat+1)*(2*rLon+1) > int64(len(buckets)) {
		// Near the poles the ring has more cells than there are buckets.
		for k, idx := range buckets {
			if abs(k.lat-c.lat) <= rLat && abs(k.lon-c.lon) <= rLon {
				out = append(out, idx...)
			}
		}
	} else {
		for dLat := -rLat; dLat <= rLat; dLat++ {
			for dLon := -rLon; dLon <= rLon; dLon++ {
				out = append(out, buckets[cell{c.lat + dLat, c.lon + dLon}]...)
			}
		}
	}
	slices.Sort(out)
	return out
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// canonicalOrder sorts by confidence descending, then by identity and content
// so that equal-confidence places always meet in the same order.
func canonicalOrder(a, b *places.Place) int {
	if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
		return c
	}
	return cmp.Or(
		cmp.Compare(a.ID, b.ID),
		cmp.Compare(a.Name, b.Name),
		cmp.Compare(a.Lat, b.Lat),
		cmp.Compare(a.Lon, b.Lon),
		cmp.Compare(a.Category.Primary, b.Category.Primary),
		cmp.Compare(a.Brand, b.Brand),
		cmp.Compare(a.OperatingStatus, b.OperatingStatus),
		cmp.Compare(strings.Join(a.SourceNames(), ","), strings.Join(b.SourceNames(), ",")),
	)
}
