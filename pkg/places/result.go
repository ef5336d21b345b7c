package places

// Result is the answer to a search.
type Result struct {
	Places   []Place  `json:"places" yaml:"places"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	Count      int              `json:"count" yaml:"count"`
	Cached     bool             `json:"cached" yaml:"cached"`
	LatencyMS  int64            `json:"latency_ms" yaml:"latency_ms"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Providers  []ProviderStatus `json:"providers,omitempty" yaml:"providers,omitempty"`
}

// ProviderStatus reports the contribution of one provider to a search.
type ProviderStatus struct {
	Name      string `json:"name" yaml:"name"`
	Count     int    `json:"count" yaml:"count"`
	LatencyMS int64  `json:"latency_ms" yaml:"latency_ms"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewResult wraps places with a count and the given confidence.
func NewResult(ps []Place, confidence float64) *Result {
	if ps == nil {
		ps = []Place{}
	}
	return &Result{
		Places: ps,
		Metadata: Metadata{
			Count:      len(ps),
			Confidence: confidence,
		},
	}
}
