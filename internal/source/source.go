// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source wraps external search providers behind a uniform adapter
// interface. Adapters are registered once at startup; the registry owns the
// per-call timeout, rate limiting, and the never-raise failure policy, so a
// failing provider contributes an empty result list instead of an error.
package source

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meshintel/deepresearch/pkg/types"
)

// Adapter searches a single external provider. Implementations return errors
// normally; the registry converts them to empty results.
type Adapter interface {
	Name() string
	Type() types.SourceType
	Search(ctx context.Context, query string, maxResults int) ([]types.RawResult, error)
}

// Registry holds the registered adapters in registration order. That order is
// load-bearing: the researcher's merge policy resolves URL collisions in
// favor of the earlier-registered adapter.
type Registry struct {
	cfg     types.SourceConfig
	log     *zap.Logger
	entries []registryEntry
}

type registryEntry struct {
	adapter Adapter
	limiter *rate.Limiter
}

// NewRegistry returns an empty registry.
func NewRegistry(cfg types.SourceConfig, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{cfg: cfg, log: log}
}

// Register appends an adapter. Each adapter gets its own rate limiter so a
// chatty provider cannot starve the others.
func (r *Registry) Register(a Adapter) {
	rps := r.cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	r.entries = append(r.entries, registryEntry{
		adapter: a,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	})
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Name returns the name of the adapter at index i.
func (r *Registry) Name(i int) string {
	return r.entries[i].adapter.Name()
}

// Match returns the indices of adapters whose type matches the preference.
// SourceAny (or empty) matches every adapter.
func (r *Registry) Match(pref types.SourceType) []int {
	var idx []int
	for i, e := range r.entries {
		if pref == "" || pref == types.SourceAny || e.adapter.Type() == pref {
			idx = append(idx, i)
		}
	}
	return idx
}

// Search runs one provider call under the registry's failure policy: the
// per-call timeout is applied, the adapter's rate limiter is honored, and any
// error is converted to an empty result list with a logged warning. The only
// exception is caller cancellation, which is reported so rounds can stop.
func (r *Registry) Search(ctx context.Context, i int, query string) []types.RawResult {
	e := r.entries[i]

	if err := e.limiter.Wait(ctx); err != nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	results, err := e.adapter.Search(callCtx, query, r.cfg.MaxResultsPerCall)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn("provider search failed",
				zap.String("provider", e.adapter.Name()),
				zap.String("query", query),
				zap.Error(err))
		}
		return nil
	}
	return results
}

// httpClient returns the shared HTTP client adapters should use.
func httpClient(cfg types.SourceConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}
