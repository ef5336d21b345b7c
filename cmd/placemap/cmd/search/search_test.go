package search

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/placemap"
	"github.com/agentstation/placemap/cmd/application"
	"github.com/agentstation/placemap/internal/catalog/memory"
	"github.com/agentstation/placemap/pkg/places"
)

func TestParseBounds(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    places.Bounds
		wantErr bool
	}{
		{name: "valid", in: "40.75,40.70,-73.95,-74.02", want: places.Bounds{North: 40.75, South: 40.70, East: -73.95, West: -74.02}},
		{name: "spaces", in: " 1, 0 , 1, 0", want: places.Bounds{North: 1, South: 0, East: 1, West: 0}},
		{name: "too few", in: "1,2,3", wantErr: true},
		{name: "not a number", in: "a,0,1,0", wantErr: true},
		{name: "north below south", in: "0,1,1,0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBounds(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearchCommandWithMock(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.InsertPlace(context.Background(), &places.Place{
		ID: "p1", Name: "Blue Bottle", Lat: 37.7764, Lon: -122.4232, Confidence: 0.9,
	}))
	pm, err := placemap.New(placemap.WithCatalog(store))
	require.NoError(t, err)

	app := &application.Mock{
		PlacemapFunc:     func(context.Context) (placemap.Client, error) { return pm, nil },
		OutputFormatFunc: func() string { return "json" },
	}

	cmd := NewSearchCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--lat", "37.7764", "--lon", "-122.4232", "--radius", "100"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `"Blue Bottle"`)

	place := NewPlaceCommand(app)
	out.Reset()
	place.SetOut(&out)
	place.SetArgs([]string{"p1"})
	require.NoError(t, place.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), `"id": "p1"`)
}
