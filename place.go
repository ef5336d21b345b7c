package placemap

import (
	"context"
	"strings"

	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/logging"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
)

// GetPlace implements Client. Providers are asked in ascending priority and
// the first that knows the id wins. Provider errors are logged and the next
// provider is tried.
func (c *client) GetPlace(ctx context.Context, id string) (*places.Place, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewValidationError("id", id, "is required")
	}

	key := PlaceKey(id)
	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("Cache read failed")
	} else if ok {
		if p, ok := v.(*places.Place); ok && p != nil {
			return p.Clone(), nil
		}
	}

	for _, p := range c.registry.List() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pctx := logging.WithPlace(logging.WithProvider(logging.WithLogger(ctx, c.logger), p.Name()), id)
		logger := logging.FromContext(pctx)

		found, err := c.lookup(pctx, p, id)
		if errors.IsTimeout(err) {
			logger.Warn().Msg("Place lookup timed out")
			continue
		}
		if err != nil {
			logger.Warn().Err(err).Msg("Place lookup failed")
			continue
		}
		if found == nil {
			continue
		}

		if err := c.cache.Set(ctx, key, found.Clone(), c.config.placeTTL); err != nil {
			logger.Warn().Err(err).Str("cache_key", key).Msg("Failed to cache place")
		}
		logger.Debug().Msg("Place found")
		return found, nil
	}

	return nil, errors.NewNotFoundError("place", id)
}

// lookup calls one provider's GetPlace under its timeout, recovering panics.
func (c *client) lookup(ctx context.Context, p providers.Provider, id string) (found *places.Place, err error) {
	name := p.Name()
	if t := p.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			found = nil
			err = errors.NewProviderError(name, "get_place", errors.New("panic during lookup"))
		}
	}()

	found, err = p.GetPlace(ctx, id)
	if err != nil {
		return nil, errors.NewProviderError(name, "get_place", err)
	}
	return found, nil
}
