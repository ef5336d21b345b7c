// Package postgres implements catalog.Store on PostgreSQL through gorm.
//
// Spatial filtering uses plain latitude/longitude columns: a bounding box
// narrows candidates in SQL and exact haversine distances are computed in Go,
// so the store needs no PostGIS or trigram extensions.
package postgres

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentstation/placemap/pkg/catalog"
	"github.com/agentstation/placemap/pkg/constants"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/logging"
	"github.com/agentstation/placemap/pkg/places"
)

// maxCandidates caps the rows read for one search before exact filtering.
const maxCandidates = 2000

// Store is a PostgreSQL catalog.Store.
type Store struct {
	db     *gorm.DB
	logger *zerolog.Logger
	now    func() time.Time
}

var _ catalog.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store and its queries.
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for link timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to the database at dsn.
func Open(dsn string, opts ...Option) (*Store, error) {
	s := newStore(nil, opts...)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(s.logger),
	})
	if err != nil {
		return nil, errors.NewCatalogUnavailableError("connect", err)
	}
	s.db = db
	return s, nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, opts ...Option) *Store {
	return newStore(db, opts...)
}

func newStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: logging.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&PlaceRecord{}, &LayerRecord{}, &PlaceLayerRecord{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Search implements catalog.Reader.
func (s *Store) Search(ctx context.Context, q places.SearchQuery) ([]places.Place, error) {
	q.Normalize()
	tx := s.inBox(ctx, q.Lat, q.Lon, q.Radius)
	if q.Category != "" {
		tx = tx.Where("(LOWER(category_primary) = LOWER(?) OR ? = ANY(category_secondary))", q.Category, q.Category)
	}
	if q.Query != "" {
		tx = tx.Where("(name ILIKE ? OR LOWER(brand) = LOWER(?))", "%"+q.Query+"%", q.Query)
	}

	candidates, err := s.find(tx)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}
	return catalog.Within(q, candidates), nil
}

// GetPlace implements catalog.Reader.
func (s *Store) GetPlace(ctx context.Context, id string) (*places.Place, error) {
	var rec PlaceRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get place %s: %w", id, err)
	}
	p, err := rec.toPlace()
	if err != nil {
		return nil, fmt.Errorf("decode place %s: %w", id, err)
	}
	return &p, nil
}

// FuzzyMatch implements catalog.Reader.
func (s *Store) FuzzyMatch(ctx context.Context, lat, lon float64, name string, radius float64) (*places.Place, error) {
	candidates, err := s.find(s.inBox(ctx, lat, lon, radius))
	if err != nil {
		return nil, fmt.Errorf("fuzzy match: %w", err)
	}
	return catalog.BestMatch(candidates, lat, lon, name, radius), nil
}

// inBox selects places inside the bounding box of the circle, nearest first
// by an equirectangular approximation. Longitude differences wrap at the
// antimeridian.
func (s *Store) inBox(ctx context.Context, lat, lon, radius float64) *gorm.DB {
	box := catalog.BoundingBox(lat, lon, radius)
	cos := math.Cos(lat * math.Pi / 180)
	tx := s.db.WithContext(ctx).
		Model(&PlaceRecord{}).
		Where("lat BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if box.CrossesAntimeridian() {
		tx = tx.Where("(lon >= ? OR lon <= ?)", box.MinLon, box.MaxLon)
	} else {
		tx = tx.Where("lon BETWEEN ? AND ?", box.MinLon, box.MaxLon)
	}
	return tx.
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "(lat - ?) * (lat - ?) + POWER(LEAST(ABS(lon - ?), 360 - ABS(lon - ?)), 2) * ?",
			Vars:               []any{lat, lat, lon, lon, cos * cos},
			WithoutParentheses: true,
		}}).
		Limit(maxCandidates)
}

func (s *Store) find(tx *gorm.DB) ([]places.Place, error) {
	var recs []PlaceRecord
	if err := tx.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]places.Place, 0, len(recs))
	for i := range recs {
		p, err := recs[i].toPlace()
		if err != nil {
			s.logger.Warn().Err(err).Str("place_id", recs[i].ID).Msg("Skipping undecodable place")
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// InsertPlace implements catalog.PlaceWriter.
func (s *Store) InsertPlace(ctx context.Context, p *places.Place) error {
	rec, err := toPlaceRecord(p)
	if err != nil {
		return errors.WrapValidation("place", err)
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.WrapResource("insert", "place", p.ID, errors.ErrAlreadyExists)
		}
		return fmt.Errorf("insert place %s: %w", p.ID, err)
	}
	return nil
}

// UpsertPlaces implements catalog.PlaceWriter.
func (s *Store) UpsertPlaces(ctx context.Context, ps []places.Place) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}
	recs := make([]*PlaceRecord, 0, len(ps))
	for i := range ps {
		rec, err := toPlaceRecord(&ps[i])
		if err != nil {
			return 0, errors.WrapValidation("place", err)
		}
		recs = append(recs, rec)
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(placeUpdateColumns),
		}).
		CreateInBatches(recs, constants.ImportBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert places: %w", res.Error)
	}
	return len(recs), nil
}

var placeUpdateColumns = []string{
	"name", "lat", "lon", "category_primary", "category_secondary", "confidence",
	"socials", "websites", "phones", "emails", "street", "city", "state", "postcode",
	"country", "brand", "operating_status", "sources", "attributes", "updated_at",
}

// ClearPlaces implements catalog.PlaceWriter. Links go with their places
// through the cascading foreign key.
func (s *Store) ClearPlaces(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = constants.ClearBatchSize
	}
	var total int64
	for {
		res := s.db.WithContext(ctx).Exec(
			"DELETE FROM places WHERE id IN (SELECT id FROM places LIMIT ?)", batchSize)
		if res.Error != nil {
			return total, fmt.Errorf("clear places: %w", res.Error)
		}
		total += res.RowsAffected
		s.logger.Debug().Int64("deleted", total).Msg("Cleared batch of places")
		if res.RowsAffected == 0 {
			return total, nil
		}
	}
}

// GetLink implements catalog.LinkStore.
func (s *Store) GetLink(ctx context.Context, placeID, layerSlug string) (*places.PlaceLayer, error) {
	layer, err := s.layer(ctx, layerSlug)
	if err != nil || layer == nil {
		return nil, err
	}
	var rec PlaceLayerRecord
	err = s.db.WithContext(ctx).
		Where("place_id = ? AND layer_id = ?", placeID, layer.ID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get link %s/%s: %w", placeID, layerSlug, err)
	}
	return rec.toPlaceLayer(layer.Slug)
}

// CreateLink implements catalog.LinkStore.
func (s *Store) CreateLink(ctx context.Context, placeID, layerSlug, externalID string, data *places.Attributes) (*places.PlaceLayer, error) {
	layer, err := s.layer(ctx, layerSlug)
	if err != nil {
		return nil, err
	}
	if layer == nil {
		return nil, errors.NewNotFoundError("layer", layerSlug)
	}
	raw, err := encodeAttributes(data)
	if err != nil {
		return nil, errors.WrapValidation("layer_data", err)
	}

	rec := &PlaceLayerRecord{
		PlaceID:      placeID,
		LayerID:      layer.ID,
		ExternalID:   externalID,
		LayerData:    raw,
		LastSyncedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, errors.WrapResource("create", "link", placeID+"/"+layerSlug, errors.ErrAlreadyExists)
		case isForeignKeyViolation(err):
			return nil, errors.NewNotFoundError("place", placeID)
		}
		return nil, fmt.Errorf("create link %s/%s: %w", placeID, layerSlug, err)
	}
	return rec.toPlaceLayer(layer.Slug)
}

// UpdateLink implements catalog.LinkStore.
func (s *Store) UpdateLink(ctx context.Context, linkID string, data *places.Attributes, syncedAt time.Time) error {
	raw, err := encodeAttributes(data)
	if err != nil {
		return errors.WrapValidation("layer_data", err)
	}
	return s.updateLink(ctx, linkID, map[string]any{
		"layer_data":     raw,
		"last_synced_at": syncedAt.UTC(),
	})
}

// TouchLink implements catalog.LinkStore.
func (s *Store) TouchLink(ctx context.Context, linkID string) error {
	return s.updateLink(ctx, linkID, map[string]any{"last_synced_at": s.now().UTC()})
}

func (s *Store) updateLink(ctx context.Context, linkID string, values map[string]any) error {
	id, err := uuid.Parse(linkID)
	if err != nil {
		return errors.NewNotFoundError("link", linkID)
	}
	res := s.db.WithContext(ctx).Model(&PlaceLayerRecord{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update link %s: %w", linkID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NewNotFoundError("link", linkID)
	}
	return nil
}

// BatchLoadLinks implements catalog.LinkStore.
func (s *Store) BatchLoadLinks(ctx context.Context, placeIDs []string) (map[string][]places.Overlay, error) {
	out := make(map[string][]places.Overlay)
	if len(placeIDs) == 0 {
		return out, nil
	}
	var recs []PlaceLayerRecord
	err := s.db.WithContext(ctx).
		Preload("Layer").
		Where("place_id IN ?", placeIDs).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	for i := range recs {
		data, err := decodeAttributes(recs[i].LayerData)
		if err != nil {
			s.logger.Warn().Err(err).Str("link_id", recs[i].ID.String()).Msg("Skipping undecodable layer data")
			continue
		}
		out[recs[i].PlaceID] = append(out[recs[i].PlaceID], places.Overlay{
			Slug: recs[i].Layer.Slug,
			Name: recs[i].Layer.Name,
			Icon: recs[i].Layer.Icon,
			Data: data,
		})
	}
	for id := range out {
		slices.SortFunc(out[id], func(a, b places.Overlay) int { return cmp.Compare(a.Slug, b.Slug) })
	}
	return out, nil
}

// Layer implements catalog.LayerStore.
func (s *Store) Layer(ctx context.Context, slug string) (*places.Layer, error) {
	rec, err := s.layer(ctx, slug)
	if err != nil || rec == nil {
		return nil, err
	}
	l := rec.toLayer()
	return &l, nil
}

func (s *Store) layer(ctx context.Context, slug string) (*LayerRecord, error) {
	var rec LayerRecord
	if err := s.db.WithContext(ctx).First(&rec, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get layer %s: %w", slug, err)
	}
	return &rec, nil
}

// Layers implements catalog.LayerStore.
func (s *Store) Layers(ctx context.Context) ([]places.Layer, error) {
	var recs []LayerRecord
	if err := s.db.WithContext(ctx).Order("slug").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	out := make([]places.Layer, len(recs))
	for i := range recs {
		out[i] = recs[i].toLayer()
	}
	return out, nil
}

// UpsertLayers implements catalog.LayerStore.
func (s *Store) UpsertLayers(ctx context.Context, layers []places.Layer) error {
	if len(layers) == 0 {
		return nil
	}
	recs := make([]*LayerRecord, 0, len(layers))
	for _, l := range layers {
		if l.Slug == "" {
			return errors.NewValidationError("slug", "", "layer slug is required")
		}
		rec := &LayerRecord{Slug: l.Slug, Name: l.Name, Icon: l.Icon, Description: l.Description}
		if id, err := uuid.Parse(l.ID); err == nil {
			rec.ID = id
		}
		recs = append(recs, rec)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "icon", "description", "updated_at"}),
		}).
		Create(recs).Error
	if err != nil {
		return fmt.Errorf("upsert layers: %w", err)
	}
	return nil
}

// Ping implements catalog.Store.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements catalog.Store.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation recognises duplicate keys whether or not gorm translated
// the driver error.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
