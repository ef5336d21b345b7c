package linker

import (
	"github.com/agentstation/placemap/pkg/places"
)

// Outcome is what a link attempt did to the store.
type Outcome int

// Link outcomes.
const (
	Failed  Outcome = iota // nothing usable was written
	Created                // new canonical place and link
	Linked                 // existing place, new link
	Updated                // existing link, layer data replaced
	Touched                // existing link, sync time refreshed
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Linked:
		return "linked"
	case Updated:
		return "updated"
	case Touched:
		return "touched"
	default:
		return "failed"
	}
}

// Event describes one successful link attempt.
type Event struct {
	Outcome Outcome
	Source  string
	Layer   string
	Place   *places.Place      // the canonical place
	Link    *places.PlaceLayer // nil when the link could not be read back
}

// Failure is a record the linker could not process.
type Failure struct {
	Index   int    `json:"index" yaml:"index"`
	PlaceID string `json:"place_id,omitempty" yaml:"place_id,omitempty"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Err     error  `json:"-" yaml:"-"`
	Message string `json:"error" yaml:"error"`
}

// Report summarises a LinkAll pass.
type Report struct {
	Places   []places.Place  `json:"places" yaml:"places"` // canonical places, in input order
	Counts   map[Outcome]int `json:"-" yaml:"-"`
	Failures []Failure       `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Count returns how many records ended with outcome o.
func (r *Report) Count(o Outcome) int {
	return r.Counts[o]
}
