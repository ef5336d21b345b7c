package dedup_test

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap/pkg/dedup"
	"github.com/agentstation/placemap/pkg/places"
)

func dist(m float64) *float64 { return &m }

func place(id, name string, lat, lon, confidence float64) places.Place {
	return places.Place{ID: id, Name: name, Lat: lat, Lon: lon, Confidence: confidence}
}

func newMerger() *dedup.Merger {
	return dedup.NewMerger(dedup.DefaultConfig())
}

func TestMergeEmpty(t *testing.T) {
	out := newMerger().Merge(nil, 10)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestMergeRanking(t *testing.T) {
	a := place("a", "Alpha Cafe", 40.7000, -74.0000, 0.9)
	a.Distance = dist(100)
	b := place("b", "Zeta Books", 40.7300, -74.0300, 0.5)
	b.Distance = dist(50)

	m := newMerger()
	assert.InDelta(t, 1.194, m.Score(&a), 1e-9)
	assert.InDelta(t, 0.797, m.Score(&b), 1e-9)

	out := m.Merge([]places.Place{b, a}, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestScoreWithoutDistance(t *testing.T) {
	p := place("a", "Alpha", 0, 0, 0.6)
	assert.Equal(t, 0.6, newMerger().Score(&p))

	far := place("b", "Beta", 0, 0, 0.6)
	far.Distance = dist(9000)
	assert.Equal(t, 0.6, newMerger().Score(&far))
}

func TestMergeUnionsContacts(t *testing.T) {
	primary := place("p", "Blue Bottle", 40.7000, -74.0000, 0.9)
	primary.Contacts.Websites = []string{"a.com"}
	primary.Contacts.Phones = []string{"+1 555 0100"}
	secondary := place("s", "Blue Bottle", 40.70005, -74.0000, 0.6)
	secondary.Contacts.Websites = []string{"b.com", "a.com"}
	secondary.Contacts.Emails = []string{"hi@b.com"}

	out := newMerger().Merge([]places.Place{secondary, primary}, 10)
	require.Len(t, out, 1)

	merged := out[0]
	assert.Equal(t, "p", merged.ID)
	assert.ElementsMatch(t, []string{"a.com", "b.com"}, merged.Contacts.Websites)
	assert.Equal(t, []string{"+1 555 0100"}, merged.Contacts.Phones)
	assert.Equal(t, []string{"hi@b.com"}, merged.Contacts.Emails)
}

func TestMergePrimaryByConfidence(t *testing.T) {
	low := place("low", "Joe's Pizza", 40.7000, -74.0000, 0.4)
	low.Brand = "Joe's"
	low.Address = places.Address{Street: "7 Carmine St", City: "New York"}
	low.Sources = map[string]places.SourceRef{
		"google": {ExternalID: "g-low"},
		"yelp":   {ExternalID: "y-1"},
	}
	low.Attributes = places.AttributesFromMap(map[string]any{"wifi": false, "seats": 12})

	high := place("high", "Joes Pizza", 40.7001, -74.0000, 0.95)
	high.Address = places.Address{City: "NYC", Postcode: "10014"}
	high.Sources = map[string]places.SourceRef{"google": {ExternalID: "g-high"}}
	high.Attributes = places.AttributesFromMap(map[string]any{"wifi": true})

	out := newMerger().Merge([]places.Place{low, high}, 10)
	require.Len(t, out, 1)
	merged := out[0]

	assert.Equal(t, "high", merged.ID)
	assert.Equal(t, "Joes Pizza", merged.Name)
	assert.Equal(t, 0.95, merged.Confidence)
	assert.Equal(t, "Joe's", merged.Brand, "absent scalar is filled from secondary")
	assert.Equal(t, places.Address{Street: "7 Carmine St", City: "NYC", Postcode: "10014"}, merged.Address)

	assert.Equal(t, "g-high", merged.Sources["google"].ExternalID)
	assert.Equal(t, "y-1", merged.Sources["yelp"].ExternalID)

	wifi, _ := merged.Attributes.Get("wifi")
	seats, _ := merged.Attributes.Get("seats")
	assert.Equal(t, true, wifi)
	assert.Equal(t, 12, seats)

	// inputs are untouched
	assert.Len(t, high.Sources, 1)
}

func TestMergeFuzzyRule(t *testing.T) {
	tests := []struct {
		name      string
		category  string
		latOffset float64
		want      int
	}{
		{"close and same category", "restaurant", 0.0002, 1},
		{"close but other category", "bar", 0.0002, 2},
		{"same category but too far", "restaurant", 0.0008, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := place("a", "Joe's Pizza", 40.7000, -74.0000, 0.9)
			a.Category.Primary = "restaurant"
			b := place("b", "Joe's Pizzeria", 40.7000+tt.latOffset, -74.0000, 0.8)
			b.Category.Primary = tt.category

			assert.Len(t, newMerger().Merge([]places.Place{a, b}, 10), tt.want)
		})
	}
}

func TestMergeBucketing(t *testing.T) {
	tests := []struct {
		name   string
		a, b   [2]float64
		merged bool
	}{
		{"adjacent cells", [2]float64{40.7005, -74.0000}, [2]float64{40.7015, -74.0000}, true},
		{"136m apart along latitude", [2]float64{40.70099, -74.0000}, [2]float64{40.70221, -74.0000}, true},
		{"57m apart along longitude at 60N", [2]float64{60.0, 10.00099}, [2]float64{60.0, 10.00201}, true},
		{"140m apart along longitude at 60N", [2]float64{60.0, 10.00099}, [2]float64{60.0, 10.00351}, true},
		{"across the pole", [2]float64{89.9999, 0}, [2]float64{89.9999, 120}, true},
		{"556m apart along latitude", [2]float64{40.7005, -74.0000}, [2]float64{40.7055, -74.0000}, false},
		{"500m apart along longitude at 60N", [2]float64{60.0, 10.00099}, [2]float64{60.0, 10.00999}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := place("a", "Corner Store", tt.a[0], tt.a[1], 0.9)
			b := place("b", "Corner Store", tt.b[0], tt.b[1], 0.8)
			want := 2
			if tt.merged {
				want = 1
			}
			assert.Len(t, newMerger().Merge([]places.Place{a, b}, 10), want)
			assert.Len(t, newMerger().Merge([]places.Place{b, a}, 10), want)
		})
	}
}

func TestMergeCompareRadius(t *testing.T) {
	a := place("a", "Corner Store", 40.7000, -74.0000, 0.9)
	b := place("b", "Corner Store", 40.7040, -74.0000, 0.8)

	assert.Len(t, newMerger().Merge([]places.Place{a, b}, 10), 2)

	wide := dedup.NewMerger(dedup.Config{CompareRadius: 600})
	assert.Len(t, wide.Merge([]places.Place{a, b}, 10), 1)
}

func TestMergeExactDuplicates(t *testing.T) {
	a := place("a", "Cafe Luna", 48.1, 11.5, 0.7)
	out := newMerger().Merge([]places.Place{a, a, a}, 10)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestMergeLimit(t *testing.T) {
	in := []places.Place{
		place("a", "Alpha", 10.0, 10.0, 0.9),
		place("b", "Bravo", 11.0, 10.0, 0.8),
		place("c", "Charlie", 12.0, 10.0, 0.7),
	}
	out := newMerger().Merge(in, 2)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"a", "b"}, []string{out[0].ID, out[1].ID})

	assert.Len(t, newMerger().Merge(in, 0), 3)
}

func TestMergeOrderIndependent(t *testing.T) {
	in := []places.Place{
		place("a", "Blue Bottle Coffee", 40.7000, -74.0000, 0.9),
		place("b", "Blue Bottle Cafe", 40.7001, -74.0001, 0.6),
		place("c", "Blue Bottle Coffee", 40.7002, -74.0000, 0.9),
		place("d", "Joe's Pizza", 40.7100, -74.0100, 0.5),
		place("e", "Joes Pizza", 40.7101, -74.0100, 0.5),
		place("f", "Library", 40.7200, -74.0200, 1.0),
		place("g", "Corner Deli", 40.7300, -74.0300, 0.7),
		place("h", "Corner Grill", 40.7300, -74.0301, 0.7),
	}
	for i := range in {
		in[i].Category.Primary = "food"
		in[i].Contacts.Websites = []string{in[i].ID + ".example"}
		in[i].Distance = dist(float64(i) * 100)
	}

	m := newMerger()
	want := normalize(m.Merge(in, 20))

	rng := rand.New(rand.NewSource(7))
	for range 25 {
		shuffled := slices.Clone(in)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, normalize(m.Merge(shuffled, 20)))
	}
}

func TestConfigDefaults(t *testing.T) {
	m := dedup.NewMerger(dedup.Config{Radius: 25})
	cfg := m.Config()
	assert.Equal(t, 25.0, cfg.Radius)
	assert.Equal(t, 0.001, cfg.CellSize)
	assert.Equal(t, 0.9, cfg.NameThreshold)
	assert.Equal(t, 0.3, cfg.RankWeight)
	assert.Equal(t, 150.0, cfg.CompareRadius)
}

func TestFingerprint(t *testing.T) {
	a := place("a", "Cafe LUNA", 48.1234561, 11.5, 0.7)
	b := place("b", "cafe luna", 48.1234564, 11.5, 0.2)
	assert.Equal(t, dedup.Fingerprint(&a), dedup.Fingerprint(&b))
	assert.Equal(t, "cafe luna|48.123456|11.500000", dedup.Fingerprint(&a))
}

// normalize sorts set-valued fields so results can be compared structurally.
func normalize(ps []places.Place) []places.Place {
	for i := range ps {
		slices.Sort(ps[i].Contacts.Websites)
	}
	return ps
}
