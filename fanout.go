package placemap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentstation/placemap/pkg/constants"
	pkgerrors "github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/logging"
	"github.com/agentstation/placemap/pkg/places"
	"github.com/agentstation/placemap/pkg/providers"
)

// providerResult is what one external provider contributed to a search.
type providerResult struct {
	provider providers.Provider
	places   []places.Place
	latency  time.Duration
	err      error
}

// status reports the result for the search metadata.
func (r providerResult) status() places.ProviderStatus {
	s := places.ProviderStatus{
		Name:      r.provider.Name(),
		Count:     len(r.places),
		LatencyMS: r.latency.Milliseconds(),
	}
	if r.err != nil {
		s.Error = r.err.Error()
	}
	return s
}

// fanout queries every external provider concurrently. Each call runs under
// the provider's own timeout and is detached from the caller's cancellation,
// so a slow or aborted request never cuts another provider short. Failures
// are logged and yield an empty contribution. Results keep provider order.
func (c *client) fanout(ctx context.Context, q places.SearchQuery) []providerResult {
	results := make([]providerResult, len(c.external))

	var wg sync.WaitGroup
	var errs []error
	var errMutex sync.Mutex

	for i, p := range c.external {
		wg.Add(1)
		go func(i int, p providers.Provider) {
			defer wg.Done()

			res := c.callProvider(ctx, p, q)
			results[i] = res
			if res.err != nil {
				errMutex.Lock()
				errs = append(errs, res.err)
				errMutex.Unlock()
			}
		}(i, p)
	}

	// Wait for all goroutines to complete
	wg.Wait()

	if len(errs) > 0 {
		c.logger.Debug().
			Int("failed", len(errs)).
			Int("providers", len(c.external)).
			AnErr("errors", errors.Join(errs...)).
			Msg("Provider fan-out finished with errors")
	}
	return results
}

// callProvider runs one provider search, turning timeouts, errors and panics
// into a *errors.ProviderError. A provider that ignores its context is
// abandoned once the timeout passes.
func (c *client) callProvider(ctx context.Context, p providers.Provider, q places.SearchQuery) providerResult {
	name := p.Name()
	ctx = logging.WithProvider(logging.WithLogger(ctx, c.logger), name)
	logger := logging.FromContext(ctx)

	timeout := p.Timeout()
	if timeout <= 0 {
		timeout = constants.DefaultProviderTimeout
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	type outcome struct {
		res *places.Result
		err error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := p.Search(callCtx, q)
		done <- outcome{res: res, err: err}
	}()

	var got outcome
	select {
	case got = <-done:
	case <-callCtx.Done():
		got = outcome{err: callCtx.Err()}
	}

	res := providerResult{provider: p, latency: time.Since(start)}
	if got.err != nil {
		res.err = pkgerrors.NewProviderError(name, "search", got.err)
		if pkgerrors.IsTimeout(res.err) {
			logger.Warn().Dur("timeout", timeout).Msg("Provider search timed out")
		} else {
			logger.Error().Err(res.err).Dur("latency", res.latency).Msg("Provider search failed")
		}
		return res
	}
	if got.res != nil {
		res.places = got.res.Places
	}

	logger.Debug().
		Int("places", len(res.places)).
		Dur("latency", res.latency).
		Msg("Provider search finished")
	return res
}
