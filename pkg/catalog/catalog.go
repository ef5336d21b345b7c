// Package catalog defines the authoritative place store.
//
// The store is the source of truth for canonical places, layers and the
// links between them. Absent records are reported as a nil result with a nil
// error; only real failures return errors. Implementations must enforce that
// there is at most one link per (place, layer) pair and report a violation
// as errors.ErrAlreadyExists.
package catalog

import (
	"context"
	"time"

	"github.com/agentstation/placemap/pkg/places"
)

// Reader queries canonical places.
type Reader interface {
	// Search returns places within q.Radius of the query point, nearest
	// first, each with its distance set.
	Search(ctx context.Context, q places.SearchQuery) ([]places.Place, error)
	// GetPlace returns a place by id.
	GetPlace(ctx context.Context, id string) (*places.Place, error)
	// FuzzyMatch returns the single best place within radius meters whose
	// name is similar to name.
	FuzzyMatch(ctx context.Context, lat, lon float64, name string, radius float64) (*places.Place, error)
}

// PlaceWriter creates and removes canonical places.
type PlaceWriter interface {
	// InsertPlace creates a place. A duplicate id is errors.ErrAlreadyExists.
	InsertPlace(ctx context.Context, p *places.Place) error
	// UpsertPlaces inserts or replaces places by id and returns the number written.
	UpsertPlaces(ctx context.Context, ps []places.Place) (int, error)
	// ClearPlaces deletes every place and its links in batches of batchSize
	// and returns the number of places deleted.
	ClearPlaces(ctx context.Context, batchSize int) (int64, error)
}

// LinkStore manages place-layer links.
type LinkStore interface {
	// GetLink returns the link between a place and the layer with slug.
	GetLink(ctx context.Context, placeID, layerSlug string) (*places.PlaceLayer, error)
	// CreateLink links a place to a layer. An unknown slug is an
	// errors.NotFoundError; an existing link is errors.ErrAlreadyExists.
	CreateLink(ctx context.Context, placeID, layerSlug, externalID string, data *places.Attributes) (*places.PlaceLayer, error)
	// UpdateLink replaces the layer data and sync time of a link.
	UpdateLink(ctx context.Context, linkID string, data *places.Attributes, syncedAt time.Time) error
	// TouchLink refreshes the sync time of a link.
	TouchLink(ctx context.Context, linkID string) error
	// BatchLoadLinks returns the overlays of each place keyed by place id.
	BatchLoadLinks(ctx context.Context, placeIDs []string) (map[string][]places.Overlay, error)
}

// LayerStore manages layer definitions.
type LayerStore interface {
	// Layer returns a layer by slug.
	Layer(ctx context.Context, slug string) (*places.Layer, error)
	// Layers returns every layer ordered by slug.
	Layers(ctx context.Context) ([]places.Layer, error)
	// UpsertLayers creates layers or updates them by slug.
	UpsertLayers(ctx context.Context, layers []places.Layer) error
}

// Store is the complete authoritative store.
type Store interface {
	Reader
	PlaceWriter
	LinkStore
	LayerStore

	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close() error
}
