package dedup

import "github.com/agentstation/placemap/pkg/constants"

// Config holds the matching and ranking parameters of a Merger.
type Config struct {
	CellSize           float64 `json:"cell_size" yaml:"cell_size"`                       // Grid cell edge in degrees
	NameThreshold      float64 `json:"name_threshold" yaml:"name_threshold"`             // Similarity above which names alone decide
	FuzzyNameThreshold float64 `json:"fuzzy_name_threshold" yaml:"fuzzy_name_threshold"` // Similarity needed with proximity and category
	Radius             float64 `json:"radius" yaml:"radius"`                             // Meters, proximity for fuzzy matches
	CompareRadius      float64 `json:"compare_radius" yaml:"compare_radius"`             // Meters within which two places are always compared
	RankWeight         float64 `json:"rank_weight" yaml:"rank_weight"`                   // Weight of the distance bonus
	RankDistance       float64 `json:"rank_distance" yaml:"rank_distance"`               // Meters at which the bonus reaches zero
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		CellSize:           0.001,
		NameThreshold:      0.9,
		FuzzyNameThreshold: 0.7,
		Radius:             constants.DedupRadius,
		CompareRadius:      constants.DedupCompareRadius,
		RankWeight:         0.3,
		RankDistance:       5000,
	}
}

// withDefaults replaces unset fields with the defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CellSize <= 0 {
		c.CellSize = d.CellSize
	}
	if c.NameThreshold <= 0 {
		c.NameThreshold = d.NameThreshold
	}
	if c.FuzzyNameThreshold <= 0 {
		c.FuzzyNameThreshold = d.FuzzyNameThreshold
	}
	if c.Radius <= 0 {
		c.Radius = d.Radius
	}
	if c.CompareRadius <= 0 {
		c.CompareRadius = d.CompareRadius
	}
	if c.RankWeight <= 0 {
		c.RankWeight = d.RankWeight
	}
	if c.RankDistance <= 0 {
		c.RankDistance = d.RankDistance
	}
	return c
}
