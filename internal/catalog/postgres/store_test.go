package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agentstation/placemap/pkg/catalog"
	"github.com/agentstation/placemap/pkg/catalog/catalogtest"
	"github.com/agentstation/placemap/pkg/logging"
	"github.com/agentstation/placemap/pkg/places"
)

func TestPlaceRecordRoundTrip(t *testing.T) {
	attrs := places.NewAttributes()
	attrs.Set("zeta", 1.0)
	attrs.Set("alpha", "x")

	in := &places.Place{
		ID:              "p1",
		Name:            "Ferry Building",
		Lat:             37.7955,
		Lon:             -122.3937,
		Category:        places.Category{Primary: "market", Secondary: []string{"food_hall"}},
		Confidence:      1.4,
		Contacts:        places.Contacts{Websites: []string{"ferrybuilding.com"}},
		Address:         places.Address{City: "San Francisco", State: "CA"},
		Brand:           "FBM",
		OperatingStatus: "open",
		Sources:         map[string]places.SourceRef{"overture": {ExternalID: "o-1"}},
		Attributes:      attrs,
	}

	rec, err := toPlaceRecord(in)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.Confidence, "confidence is clamped")
	assert.JSONEq(t, `{"zeta":1,"alpha":"x"}`, string(rec.Attributes))

	out, err := rec.toPlace()
	require.NoError(t, err)
	assert.Equal(t, "Ferry Building", out.Name)
	assert.Equal(t, []string{"food_hall"}, out.Category.Secondary)
	assert.Equal(t, []string{"ferrybuilding.com"}, out.Contacts.Websites)
	assert.Nil(t, out.Contacts.Phones)
	assert.Equal(t, "o-1", out.Sources["overture"].ExternalID)
	assert.Equal(t, []string{"zeta", "alpha"}, out.Attributes.Keys())
}

func TestEmptyAttributes(t *testing.T) {
	raw, err := encodeAttributes(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	a, err := decodeAttributes(nil)
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = decodeAttributes([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestConstraintDetection(t *testing.T) {
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))

	assert.True(t, isForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isForeignKeyViolation(gorm.ErrForeignKeyViolated))
	assert.False(t, isForeignKeyViolation(gorm.ErrRecordNotFound))
}

// TestStoreSuite runs against a live database when PLACEMAP_TEST_DATABASE_URL is set.
func TestStoreSuite(t *testing.T) {
	dsn := os.Getenv("PLACEMAP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PLACEMAP_TEST_DATABASE_URL not set")
	}

	catalogtest.Run(t, func(t *testing.T) catalog.Store {
		s, err := Open(dsn, WithLogger(logging.NewNopLogger()))
		require.NoError(t, err)
		ctx := context.Background()
		require.NoError(t, s.Migrate(ctx))
		require.NoError(t, s.db.Exec("TRUNCATE place_layers, layers, places CASCADE").Error)
		return s
	})
}
