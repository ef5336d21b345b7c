// Package linker resolves externally observed places against the
// authoritative catalog. Each observation either matches an existing
// canonical place or creates one, and is then linked to the layer of its
// source so that repeated syncs update or touch the same link instead of
// duplicating records.
package linker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/logging"
	"github.com/agentstation/placemap/pkg/places"
)

// Store is the part of the catalog the linker needs.
type Store interface {
	FuzzyMatch(ctx context.Context, lat, lon float64, name string, radius float64) (*places.Place, error)
	InsertPlace(ctx context.Context, p *places.Place) error
	GetLink(ctx context.Context, placeID, layerSlug string) (*places.PlaceLayer, error)
	CreateLink(ctx context.Context, placeID, layerSlug, externalID string, data *places.Attributes) (*places.PlaceLayer, error)
	UpdateLink(ctx context.Context, linkID string, data *places.Attributes, syncedAt time.Time) error
	TouchLink(ctx context.Context, linkID string) error
	Layer(ctx context.Context, slug string) (*places.Layer, error)
}

// Listener is called after every successful link.
type Listener func(ctx context.Context, e Event)

// Linker links observations to canonical places. It is safe for concurrent use.
type Linker struct {
	store     Store
	mapping   *LayerMapping
	radius    float64
	now       func() time.Time
	logger    *zerolog.Logger
	listeners []Listener
}

// Option configures a Linker.
type Option func(*Linker)

// WithMapping sets the source to layer mapping.
func WithMapping(m *LayerMapping) Option {
	return func(l *Linker) {
		if m != nil {
			l.mapping = m
		}
	}
}

// WithRadius sets the match tolerance in meters.
func WithRadius(meters float64) Option {
	return func(l *Linker) {
		if meters > 0 {
			l.radius = meters
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(l *Linker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock sets the time source for sync timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Linker) {
		if now != nil {
			l.now = now
		}
	}
}

// WithListener registers a callback for successful links.
func WithListener(fn Listener) Option {
	return func(l *Linker) {
		if fn != nil {
			l.listeners = append(l.listeners, fn)
		}
	}
}

// New creates a Linker over store.
func New(store Store, opts ...Option) *Linker {
	nop := zerolog.Nop()
	l := &Linker{
		store:   store,
		mapping: &LayerMapping{Sources: map[string]string{}},
		radius:  constants.LinkRadius,
		now:     time.Now,
		logger:  &nop,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Radius returns the match tolerance in meters.
func (l *Linker) Radius() float64 { return l.radius }

// Mapping returns the layer mapping.
func (l *Linker) Mapping() *LayerMapping { return l.mapping }

// Link resolves p, observed by source, to a canonical place and links it to
// the source's layer. The returned place carries the cross reference for
// source. An undefined layer yields a *errors.LinkConflictError; store
// failures are returned as they are.
func (l *Linker) Link(ctx context.Context, p *places.Place, source string) (*places.Place, Outcome, error) {
	slug := l.mapping.Resolve(source)
	ctx = logging.WithLayer(logging.WithSource(logging.WithLogger(ctx, l.logger), source), slug)

	layer, err := l.store.Layer(ctx, slug)
	if err != nil {
		return nil, Failed, fmt.Errorf("resolve layer %s: %w", slug, err)
	}
	if layer == nil {
		return nil, Failed, errors.NewLinkConflictError(source, slug, errors.NewNotFoundError("layer", slug))
	}

	match, err := l.store.FuzzyMatch(ctx, p.Lat, p.Lon, p.Name, l.radius)
	if err != nil {
		return nil, Failed, fmt.Errorf("match %q: %w", p.Name, err)
	}

	if match == nil {
		canonical := newCanonical(p, source)
		if err := l.store.InsertPlace(ctx, canonical); err != nil {
			return nil, Failed, fmt.Errorf("insert place %q: %w", p.Name, err)
		}
		placeLog(ctx, canonical.ID).Debug().Str("name", p.Name).Msg("Created canonical place")
		l.emit(ctx, Event{Outcome: Created, Source: source, Layer: slug, Place: canonical})

		link, linked, err := l.createOrSync(ctx, canonical.ID, slug, p)
		if err != nil {
			return nil, Failed, err
		}
		l.emit(ctx, Event{Outcome: linked, Source: source, Layer: slug, Place: canonical, Link: link})
		return canonical, Created, nil
	}

	canonical := match
	canonical.AddSource(source, sourceRef(p, source))

	existing, err := l.store.GetLink(ctx, canonical.ID, slug)
	if err != nil {
		return nil, Failed, fmt.Errorf("get link %s/%s: %w", canonical.ID, slug, err)
	}

	var (
		link    *places.PlaceLayer
		outcome Outcome
	)
	if existing == nil {
		link, outcome, err = l.createOrSync(ctx, canonical.ID, slug, p)
	} else {
		link, outcome, err = l.sync(ctx, existing, p)
	}
	if err != nil {
		return nil, Failed, err
	}

	placeLog(ctx, canonical.ID).Debug().Str("name", p.Name).Stringer("outcome", outcome).Msg("Linked to existing place")
	l.emit(ctx, Event{Outcome: outcome, Source: source, Layer: slug, Place: canonical, Link: link})
	return canonical, outcome, nil
}

func placeLog(ctx context.Context, placeID string) *zerolog.Logger {
	return logging.FromContext(logging.WithPlace(ctx, placeID))
}

// createOrSync creates the link, treating a uniqueness violation as a link
// created concurrently by someone else and syncing against it instead.
func (l *Linker) createOrSync(ctx context.Context, placeID, slug string, p *places.Place) (*places.PlaceLayer, Outcome, error) {
	link, err := l.store.CreateLink(ctx, placeID, slug, p.ID, p.Attributes)
	if err == nil {
		return link, Linked, nil
	}
	if !errors.IsAlreadyExists(err) {
		return nil, Failed, fmt.Errorf("create link %s/%s: %w", placeID, slug, err)
	}

	placeLog(ctx, placeID).Debug().Msg("Link already exists, syncing instead")
	existing, gerr := l.store.GetLink(ctx, placeID, slug)
	if gerr != nil {
		return nil, Failed, fmt.Errorf("reread link %s/%s: %w", placeID, slug, gerr)
	}
	if existing == nil {
		return nil, Failed, fmt.Errorf("create link %s/%s: %w", placeID, slug, err)
	}
	return l.sync(ctx, existing, p)
}

// sync updates the link when the observed attributes differ from the stored
// layer data and only refreshes its sync time otherwise.
func (l *Linker) sync(ctx context.Context, link *places.PlaceLayer, p *places.Place) (*places.PlaceLayer, Outcome, error) {
	if SameData(link.LayerData, p.Attributes) {
		if err := l.store.TouchLink(ctx, link.ID); err != nil {
			return nil, Failed, fmt.Errorf("touch link %s: %w", link.ID, err)
		}
		synced := *link
		synced.LastSyncedAt = l.now()
		return &synced, Touched, nil
	}

	now := l.now()
	if err := l.store.UpdateLink(ctx, link.ID, p.Attributes, now); err != nil {
		return nil, Failed, fmt.Errorf("update link %s: %w", link.ID, err)
	}
	updated := *link
	updated.LayerData = p.Attributes.Clone()
	updated.LastSyncedAt = now
	return &updated, Updated, nil
}

// LinkAll links every place and keeps going past per-record failures. Only
// context cancellation stops the pass early.
func (l *Linker) LinkAll(ctx context.Context, ps []places.Place, source string) *Report {
	report := &Report{
		Places: make([]places.Place, 0, len(ps)),
		Counts: make(map[Outcome]int),
	}
	for i := range ps {
		p := &ps[i]
		if err := ctx.Err(); err != nil {
			report.fail(i, p, err)
			continue
		}
		canonical, outcome, err := l.Link(ctx, p, source)
		if err != nil {
			ev := l.logger.Warn()
			if errors.IsLinkConflict(err) {
				ev = l.logger.Error()
			}
			ev.Err(err).Str("source", source).Str("name", p.Name).Msg("Failed to link place")
			report.fail(i, p, err)
			continue
		}
		report.Counts[outcome]++
		report.Places = append(report.Places, *canonical)
	}

	l.logger.Debug().
		Str("source", source).
		Int("created", report.Counts[Created]).
		Int("linked", report.Counts[Linked]).
		Int("updated", report.Counts[Updated]).
		Int("touched", report.Counts[Touched]).
		Int("failed", report.Counts[Failed]).
		Msg("Linked provider places")
	return report
}

func (r *Report) fail(i int, p *places.Place, err error) {
	r.Counts[Failed]++
	r.Failures = append(r.Failures, Failure{
		Index:   i,
		PlaceID: p.ID,
		Name:    p.Name,
		Err:     err,
		Message: err.Error(),
	})
}

func (l *Linker) emit(ctx context.Context, e Event) {
	for _, fn := range l.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error().Interface("panic", r).Stringer("outcome", e.Outcome).Msg("Link listener panicked")
				}
			}()
			fn(ctx, e)
		}()
	}
}

// newCanonical builds a canonical place from an observation.
func newCanonical(p *places.Place, source string) *places.Place {
	c := p.Clone()
	c.ID = uuid.NewString()
	c.Confidence = constants.ProviderPlaceConfidence
	c.Layers = nil
	c.AddSource(source, sourceRef(p, source))
	return c
}

func sourceRef(p *places.Place, source string) places.SourceRef {
	ref := p.Sources[source]
	if ref.ExternalID == "" {
		ref.ExternalID = p.ID
	}
	return ref
}

// SameData reports whether two attribute bags hold the same keys with
// structurally equal values. Values are compared in their JSON form so that
// numbers read back from storage equal the ones observed.
func SameData(a, b *places.Attributes) bool {
	if a.Len() != b.Len() {
		return false
	}
	same := true
	a.Range(func(k string, av any) bool {
		bv, ok := b.Get(k)
		if !ok || !cmp.Equal(normalize(av), normalize(bv)) {
			same = false
		}
		return same
	})
	return same
}

func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
