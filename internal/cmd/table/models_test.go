package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
)

func TestPlacesToTableData(t *testing.T) {
	p := places.Place{
		ID:         "p1",
		Name:       "Joe's Pizza",
		Category:   places.Category{Primary: "pizza"},
		Confidence: 0.875,
		Address:    places.Address{Street: "7 Carmine St", City: "New York"},
		Sources:    map[string]places.SourceRef{"google": {ExternalID: "g1"}, "catalog": {ExternalID: "p1"}},
		Layers:     []places.Overlay{{Slug: "accessibility", Name: "Accessibility"}},
	}
	p.WithDistance(1530)

	data := PlacesToTableData([]places.Place{p}, false)
	assert.Equal(t, []string{"ID", "NAME", "CATEGORY", "DISTANCE", "CONFIDENCE"}, data.Headers)
	assert.Equal(t, [][]string{{"p1", "Joe's Pizza", "pizza", "1.53 km", "0.88"}}, data.Rows)
	assert.Len(t, data.ColumnAlignment, len(data.Headers))

	wide := PlacesToTableData([]places.Place{p}, true)
	assert.Len(t, wide.Headers, 8)
	assert.Equal(t, []string{"7 Carmine St, New York", "catalog, google", "accessibility"}, wide.Rows[0][5:])
}

func TestPlaceToTableData(t *testing.T) {
	p := &places.Place{
		ID:       "p1",
		Name:     "Museum",
		Lat:      40.7794,
		Lon:      -73.9632,
		Contacts: places.Contacts{Phones: []string{"+1 212"}},
		Sources:  map[string]places.SourceRef{"google": {ExternalID: "g1"}},
	}
	data := PlaceToTableData(p)
	assert.Contains(t, data.Rows, []string{"Location", "40.779400, -73.963200"})
	assert.Contains(t, data.Rows, []string{"Category", "-"})
	assert.Contains(t, data.Rows, []string{"Phones", "+1 212"})
	assert.Contains(t, data.Rows, []string{"Source: google", "g1"})
}

func TestProvidersAndHealth(t *testing.T) {
	data := ProvidersToTableData([]providers.Info{
		{Name: "catalog", Priority: 0, Timeout: 2 * time.Second, Authoritative: true},
		{Name: "google", Priority: 10, Timeout: 3 * time.Second},
	})
	assert.Equal(t, []string{"catalog", "0", "2s", "authoritative"}, data.Rows[0])
	assert.Equal(t, []string{"google", "10", "3s", "external"}, data.Rows[1])

	health := HealthToTableData(map[string]bool{"google": false, "catalog": true})
	assert.Equal(t, "catalog", health.Rows[0][0])
	assert.Contains(t, health.Rows[0][1], "healthy")
	assert.Contains(t, health.Rows[1][1], "unhealthy")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "-", FormatDistance(nil))
	d := 42.4
	assert.Equal(t, "42 m", FormatDistance(&d))
	assert.Equal(t, "1,234,567", FormatNumber(1234567))
	assert.Equal(t, "-12,000", FormatNumber(-12000))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "abc...", Truncate("abcdefghij", 6))
	assert.Equal(t, "short", Truncate("short", 10))
}
