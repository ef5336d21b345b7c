package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/agentstation/placemap/pkg/places"
)

// PlaceRecord is the row of the places table.
type PlaceRecord struct {
	ID                string         `gorm:"primaryKey;type:text"`
	Name              string         `gorm:"not null;index"`
	Lat               float64        `gorm:"not null;index:idx_places_lat_lon"`
	Lon               float64        `gorm:"not null;index:idx_places_lat_lon"`
	CategoryPrimary   string         `gorm:"index"`
	CategorySecondary pq.StringArray `gorm:"type:text[]"`
	Confidence        float64        `gorm:"not null;default:1"`
	Socials           pq.StringArray `gorm:"type:text[]"`
	Websites          pq.StringArray `gorm:"type:text[]"`
	Phones            pq.StringArray `gorm:"type:text[]"`
	Emails            pq.StringArray `gorm:"type:text[]"`
	Street            string
	City              string
	State             string `gorm:"index"`
	Postcode          string
	Country           string
	Brand             string
	OperatingStatus   string
	Sources           datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
	Attributes        datatypes.JSON `gorm:"type:json"` // json keeps key order, jsonb does not
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName implements gorm's tabler.
func (PlaceRecord) TableName() string { return "places" }

// LayerRecord is the row of the layers table.
type LayerRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Slug        string    `gorm:"not null;uniqueIndex"`
	Name        string    `gorm:"not null"`
	Icon        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName implements gorm's tabler.
func (LayerRecord) TableName() string { return "layers" }

// BeforeCreate assigns an id.
func (l *LayerRecord) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// PlaceLayerRecord is the row of the place_layers table. The unique index on
// (place_id, layer_id) is what makes concurrent link creation safe.
type PlaceLayerRecord struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	PlaceID      string         `gorm:"type:text;not null;uniqueIndex:idx_place_layer"`
	LayerID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_place_layer"`
	ExternalID   string
	LayerData    datatypes.JSON `gorm:"type:json"`
	LastSyncedAt time.Time      `gorm:"not null"`

	Place PlaceRecord `gorm:"foreignKey:PlaceID;constraint:OnDelete:CASCADE"`
	Layer LayerRecord `gorm:"foreignKey:LayerID;constraint:OnDelete:CASCADE"`
}

// TableName implements gorm's tabler.
func (PlaceLayerRecord) TableName() string { return "place_layers" }

// BeforeCreate assigns an id.
func (l *PlaceLayerRecord) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func toPlaceRecord(p *places.Place) (*PlaceRecord, error) {
	sources := p.Sources
	if sources == nil {
		sources = map[string]places.SourceRef{}
	}
	srcJSON, err := json.Marshal(sources)
	if err != nil {
		return nil, err
	}
	attrJSON, err := encodeAttributes(p.Attributes)
	if err != nil {
		return nil, err
	}
	return &PlaceRecord{
		ID:                p.ID,
		Name:              p.Name,
		Lat:               p.Lat,
		Lon:               p.Lon,
		CategoryPrimary:   p.Category.Primary,
		CategorySecondary: pq.StringArray(p.Category.Secondary),
		Confidence:        places.ClampConfidence(p.Confidence),
		Socials:           pq.StringArray(p.Contacts.Socials),
		Websites:          pq.StringArray(p.Contacts.Websites),
		Phones:            pq.StringArray(p.Contacts.Phones),
		Emails:            pq.StringArray(p.Contacts.Emails),
		Street:            p.Address.Street,
		City:              p.Address.City,
		State:             p.Address.State,
		Postcode:          p.Address.Postcode,
		Country:           p.Address.Country,
		Brand:             p.Brand,
		OperatingStatus:   p.OperatingStatus,
		Sources:           datatypes.JSON(srcJSON),
		Attributes:        attrJSON,
	}, nil
}

func (r *PlaceRecord) toPlace() (places.Place, error) {
	p := places.Place{
		ID:         r.ID,
		Name:       r.Name,
		Lat:        r.Lat,
		Lon:        r.Lon,
		Category:   places.Category{Primary: r.CategoryPrimary, Secondary: nilIfEmpty(r.CategorySecondary)},
		Confidence: r.Confidence,
		Contacts: places.Contacts{
			Socials:  nilIfEmpty(r.Socials),
			Websites: nilIfEmpty(r.Websites),
			Phones:   nilIfEmpty(r.Phones),
			Emails:   nilIfEmpty(r.Emails),
		},
		Address: places.Address{
			Street:   r.Street,
			City:     r.City,
			State:    r.State,
			Postcode: r.Postcode,
			Country:  r.Country,
		},
		Brand:           r.Brand,
		OperatingStatus: r.OperatingStatus,
	}
	if len(r.Sources) > 0 {
		if err := json.Unmarshal(r.Sources, &p.Sources); err != nil {
			return p, err
		}
		if len(p.Sources) == 0 {
			p.Sources = nil
		}
	}
	attrs, err := decodeAttributes(r.Attributes)
	if err != nil {
		return p, err
	}
	p.Attributes = attrs
	return p, nil
}

func (r *LayerRecord) toLayer() places.Layer {
	return places.Layer{
		ID:          r.ID.String(),
		Slug:        r.Slug,
		Name:        r.Name,
		Icon:        r.Icon,
		Description: r.Description,
	}
}

func (r *PlaceLayerRecord) toPlaceLayer(slug string) (*places.PlaceLayer, error) {
	data, err := decodeAttributes(r.LayerData)
	if err != nil {
		return nil, err
	}
	return &places.PlaceLayer{
		ID:           r.ID.String(),
		PlaceID:      r.PlaceID,
		LayerID:      r.LayerID.String(),
		LayerSlug:    slug,
		ExternalID:   r.ExternalID,
		LayerData:    data,
		LastSyncedAt: r.LastSyncedAt,
	}, nil
}

func encodeAttributes(a *places.Attributes) (datatypes.JSON, error) {
	if a == nil {
		return nil, nil
	}
	b, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decodeAttributes(raw datatypes.JSON) (*places.Attributes, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	a := places.NewAttributes()
	if err := a.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return a, nil
}

func nilIfEmpty(s pq.StringArray) []string {
	if len(s) == 0 {
		return nil
	}
	return []string(s)
}
