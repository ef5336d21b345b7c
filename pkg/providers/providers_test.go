package providers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
)

type stub struct {
	name     string
	priority int
}

func (s stub) Name() string           { return s.name }
func (s stub) Priority() int          { return s.priority }
func (s stub) Timeout() time.Duration { return time.Second }
func (s stub) Search(context.Context, places.SearchQuery) (*places.Result, error) {
	return places.NewResult(nil, 1), nil
}
func (s stub) GetPlace(context.Context, string) (*places.Place, error) { return nil, nil }
func (s stub) HealthCheck(context.Context) bool                       { return true }

func TestRegistry(t *testing.T) {
	r := providers.NewRegistry(
		stub{"google", 20},
		stub{"catalog", 0},
		stub{"elastic", 20},
		nil,
	)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"catalog", "elastic", "google"}, r.Names())

	p, ok := r.Get("google")
	assert.True(t, ok)
	assert.Equal(t, 20, p.Priority())

	r.Register(stub{"google", 5})
	assert.Equal(t, []string{"catalog", "google", "elastic"}, r.Names())

	r.Remove("google")
	_, ok = r.Get("google")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestInfoOf(t *testing.T) {
	info := providers.InfoOf(stub{"catalog", 0}, true)
	assert.Equal(t, providers.Info{Name: "catalog", Timeout: time.Second, Authoritative: true}, info)
}
