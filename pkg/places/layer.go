package places

import "time"

// Layer is a named enrichment category such as accessibility data.
type Layer struct {
	ID          string `json:"id" yaml:"id"`
	Slug        string `json:"slug" yaml:"slug"` // Unique
	Name        string `json:"name" yaml:"name"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// PlaceLayer links one place to one layer. There is at most one per
// (PlaceID, LayerID) pair.
type PlaceLayer struct {
	ID           string      `json:"id" yaml:"id"`
	PlaceID      string      `json:"place_id" yaml:"place_id"`
	LayerID      string      `json:"layer_id" yaml:"layer_id"`
	LayerSlug    string      `json:"layer_slug" yaml:"layer_slug"`
	ExternalID   string      `json:"external_id,omitempty" yaml:"external_id,omitempty"`
	LayerData    *Attributes `json:"layer_data,omitempty" yaml:"layer_data,omitempty"`
	LastSyncedAt time.Time   `json:"last_synced_at" yaml:"last_synced_at"`
}
