package placemap

import (
	"context"
	"sync"

	"github.com/agentstation/placemap/pkg/linker"
	"github.com/agentstation/placemap/pkg/places"
)

// Hook function types for link events
type (
	// PlaceCreatedHook is called when linking creates a canonical place
	PlaceCreatedHook func(place places.Place, source string)

	// LinkHook is called when a link is created, updated or touched
	LinkHook func(event LinkEvent)
)

// LinkEvent describes a link written by the linker.
type LinkEvent struct {
	Source string            `json:"source"`
	Layer  string            `json:"layer"`
	Place  places.Place      `json:"place"`
	Link   places.PlaceLayer `json:"link"`
}

// hooks manages event callbacks for link activity
type hooks struct {
	mu             sync.RWMutex
	onPlaceCreated []PlaceCreatedHook
	onLinkCreated  []LinkHook
	onLinkUpdated  []LinkHook
	onLinkTouched  []LinkHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnPlaceCreated registers a callback for created places
func (h *hooks) OnPlaceCreated(fn PlaceCreatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPlaceCreated = append(h.onPlaceCreated, fn)
}

// OnLinkCreated registers a callback for new links
func (h *hooks) OnLinkCreated(fn LinkHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLinkCreated = append(h.onLinkCreated, fn)
}

// OnLinkUpdated registers a callback for updated links
func (h *hooks) OnLinkUpdated(fn LinkHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLinkUpdated = append(h.onLinkUpdated, fn)
}

// OnLinkTouched registers a callback for touched links
func (h *hooks) OnLinkTouched(fn LinkHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLinkTouched = append(h.onLinkTouched, fn)
}

// trigger dispatches a linker event to the matching hooks. It is installed
// as the linker's listener.
func (h *hooks) trigger(_ context.Context, e linker.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if e.Place == nil {
		return
	}
	if e.Outcome == linker.Created {
		for _, fn := range h.onPlaceCreated {
			fn(*e.Place, e.Source)
		}
		return
	}

	var targets []LinkHook
	switch e.Outcome {
	case linker.Linked:
		targets = h.onLinkCreated
	case linker.Updated:
		targets = h.onLinkUpdated
	case linker.Touched:
		targets = h.onLinkTouched
	}
	if len(targets) == 0 {
		return
	}

	ev := LinkEvent{Source: e.Source, Layer: e.Layer, Place: *e.Place}
	if e.Link != nil {
		ev.Link = *e.Link
	}
	for _, fn := range targets {
		fn(ev)
	}
}

// OnPlaceCreated implements Client.
func (c *client) OnPlaceCreated(fn PlaceCreatedHook) { c.hooks.OnPlaceCreated(fn) }

// OnLinkCreated implements Client.
func (c *client) OnLinkCreated(fn LinkHook) { c.hooks.OnLinkCreated(fn) }

// OnLinkUpdated implements Client.
func (c *client) OnLinkUpdated(fn LinkHook) { c.hooks.OnLinkUpdated(fn) }

// OnLinkTouched implements Client.
func (c *client) OnLinkTouched(fn LinkHook) { c.hooks.OnLinkTouched(fn) }
