// Package memory implements catalog.Store in process memory on sharded
// concurrent maps. It backs tests, dry runs and single-node deployments
// without a database.
package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/agentstation/placemap/pkg/catalog"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
)

// Store is an in-memory catalog.Store.
type Store struct {
	places cmap.ConcurrentMap[string, places.Place]
	layers cmap.ConcurrentMap[string, places.Layer] // by slug
	links  cmap.ConcurrentMap[string, places.PlaceLayer]
	linkID cmap.ConcurrentMap[string, string] // link id -> links key
	now    func() time.Time
}

var _ catalog.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for link timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLayers seeds layer definitions. Layers without an id get one.
func WithLayers(layers ...places.Layer) Option {
	return func(s *Store) {
		_ = s.UpsertLayers(context.Background(), layers)
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		places: cmap.New[places.Place](),
		layers: cmap.New[places.Layer](),
		links:  cmap.New[places.PlaceLayer](),
		linkID: cmap.New[string](),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func linkKey(placeID, layerID string) string {
	return placeID + "\x00" + layerID
}

// Search implements catalog.Reader.
func (s *Store) Search(ctx context.Context, q places.SearchQuery) ([]places.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.Normalize()
	return catalog.Within(q, s.inBox(catalog.BoundingBox(q.Lat, q.Lon, q.Radius))), nil
}

// GetPlace implements catalog.Reader.
func (s *Store) GetPlace(ctx context.Context, id string) (*places.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := s.places.Get(id)
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// FuzzyMatch implements catalog.Reader.
func (s *Store) FuzzyMatch(ctx context.Context, lat, lon float64, name string, radius float64) (*places.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return catalog.BestMatch(s.inBox(catalog.BoundingBox(lat, lon, radius)), lat, lon, name, radius), nil
}

func (s *Store) inBox(box catalog.Box) []places.Place {
	var out []places.Place
	for item := range s.places.IterBuffered() {
		p := item.Val
		if box.Contains(p.Lat, p.Lon) {
			out = append(out, p)
		}
	}
	return out
}

// InsertPlace implements catalog.PlaceWriter.
func (s *Store) InsertPlace(ctx context.Context, p *places.Place) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.ID == "" {
		return errors.NewValidationError("id", "", "place id is required")
	}
	stored := p.Clone()
	stored.Distance = nil
	stored.Layers = nil
	if !s.places.SetIfAbsent(p.ID, *stored) {
		return errors.WrapResource("insert", "place", p.ID, errors.ErrAlreadyExists)
	}
	return nil
}

// UpsertPlaces implements catalog.PlaceWriter.
func (s *Store) UpsertPlaces(ctx context.Context, ps []places.Place) (int, error) {
	for i := range ps {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if ps[i].ID == "" {
			return i, errors.NewValidationError("id", "", "place id is required")
		}
		stored := ps[i].Clone()
		stored.Distance = nil
		stored.Layers = nil
		s.places.Set(stored.ID, *stored)
	}
	return len(ps), nil
}

// ClearPlaces implements catalog.PlaceWriter.
func (s *Store) ClearPlaces(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var deleted int64
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		keys := s.places.Keys()
		if len(keys) == 0 {
			break
		}
		if len(keys) > batchSize {
			keys = keys[:batchSize]
		}
		for _, id := range keys {
			s.places.Remove(id)
			deleted++
		}
	}
	for item := range s.links.IterBuffered() {
		if !s.places.Has(item.Val.PlaceID) {
			s.links.Remove(item.Key)
			s.linkID.Remove(item.Val.ID)
		}
	}
	return deleted, nil
}

// GetLink implements catalog.LinkStore.
func (s *Store) GetLink(ctx context.Context, placeID, layerSlug string) (*places.PlaceLayer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layer, ok := s.layers.Get(layerSlug)
	if !ok {
		return nil, nil
	}
	link, ok := s.links.Get(linkKey(placeID, layer.ID))
	if !ok {
		return nil, nil
	}
	link.LayerData = link.LayerData.Clone()
	return &link, nil
}

// CreateLink implements catalog.LinkStore.
func (s *Store) CreateLink(ctx context.Context, placeID, layerSlug, externalID string, data *places.Attributes) (*places.PlaceLayer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layer, ok := s.layers.Get(layerSlug)
	if !ok {
		return nil, errors.NewNotFoundError("layer", layerSlug)
	}
	if !s.places.Has(placeID) {
		return nil, errors.NewNotFoundError("place", placeID)
	}

	link := places.PlaceLayer{
		ID:           uuid.NewString(),
		PlaceID:      placeID,
		LayerID:      layer.ID,
		LayerSlug:    layer.Slug,
		ExternalID:   externalID,
		LayerData:    data.Clone(),
		LastSyncedAt: s.now(),
	}
	key := linkKey(placeID, layer.ID)
	if !s.links.SetIfAbsent(key, link) {
		return nil, errors.WrapResource("create", "link", key, errors.ErrAlreadyExists)
	}
	s.linkID.Set(link.ID, key)

	link.LayerData = link.LayerData.Clone()
	return &link, nil
}

// UpdateLink implements catalog.LinkStore.
func (s *Store) UpdateLink(ctx context.Context, linkID string, data *places.Attributes, syncedAt time.Time) error {
	return s.modifyLink(ctx, linkID, func(l *places.PlaceLayer) {
		l.LayerData = data.Clone()
		l.LastSyncedAt = syncedAt
	})
}

// TouchLink implements catalog.LinkStore.
func (s *Store) TouchLink(ctx context.Context, linkID string) error {
	return s.modifyLink(ctx, linkID, func(l *places.PlaceLayer) {
		l.LastSyncedAt = s.now()
	})
}

func (s *Store) modifyLink(ctx context.Context, linkID string, fn func(*places.PlaceLayer)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, ok := s.linkID.Get(linkID)
	if !ok {
		return errors.NewNotFoundError("link", linkID)
	}
	found := false
	s.links.Upsert(key, places.PlaceLayer{}, func(exist bool, current, _ places.PlaceLayer) places.PlaceLayer {
		found = exist
		if exist {
			fn(&current)
		}
		return current
	})
	if !found {
		s.links.Remove(key)
		return errors.NewNotFoundError("link", linkID)
	}
	return nil
}

// BatchLoadLinks implements catalog.LinkStore.
func (s *Store) BatchLoadLinks(ctx context.Context, placeIDs []string) (map[string][]places.Overlay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string][]places.Overlay)
	if len(placeIDs) == 0 {
		return out, nil
	}
	wanted := make(map[string]struct{}, len(placeIDs))
	for _, id := range placeIDs {
		wanted[id] = struct{}{}
	}

	for item := range s.links.IterBuffered() {
		link := item.Val
		if _, ok := wanted[link.PlaceID]; !ok {
			continue
		}
		layer, ok := s.layers.Get(link.LayerSlug)
		if !ok {
			continue
		}
		out[link.PlaceID] = append(out[link.PlaceID], places.Overlay{
			Slug: layer.Slug,
			Name: layer.Name,
			Icon: layer.Icon,
			Data: link.LayerData.Clone(),
		})
	}
	for id := range out {
		slices.SortFunc(out[id], func(a, b places.Overlay) int { return cmp.Compare(a.Slug, b.Slug) })
	}
	return out, nil
}

// Layer implements catalog.LayerStore.
func (s *Store) Layer(ctx context.Context, slug string) (*places.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layer, ok := s.layers.Get(slug)
	if !ok {
		return nil, nil
	}
	return &layer, nil
}

// Layers implements catalog.LayerStore.
func (s *Store) Layers(ctx context.Context) ([]places.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]places.Layer, 0, s.layers.Count())
	for item := range s.layers.IterBuffered() {
		out = append(out, item.Val)
	}
	slices.SortFunc(out, func(a, b places.Layer) int { return cmp.Compare(a.Slug, b.Slug) })
	return out, nil
}

// UpsertLayers implements catalog.LayerStore. Existing layers keep their id.
func (s *Store) UpsertLayers(ctx context.Context, layers []places.Layer) error {
	for _, l := range layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.Slug == "" {
			return errors.NewValidationError("slug", "", "layer slug is required")
		}
		s.layers.Upsert(l.Slug, l, func(exist bool, current, next places.Layer) places.Layer {
			switch {
			case exist:
				next.ID = current.ID
			case next.ID == "":
				next.ID = uuid.NewString()
			}
			return next
		})
	}
	return nil
}

// Ping implements catalog.Store.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements catalog.Store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of places.
func (s *Store) Len() int {
	return s.places.Count()
}
