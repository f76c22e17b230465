// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package research fans a round of sub-topic queries out across the
// registered adapters and returns the validated findings for the orchestrator
// to merge. Calls run concurrently under a bounded worker pool, but the merge
// order is fixed by (sub-topic, adapter registration) position, so the
// outcome is deterministic regardless of arrival order.
package research

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meshintel/deepresearch/internal/source"
	"github.com/meshintel/deepresearch/internal/validate"
	"github.com/meshintel/deepresearch/pkg/types"
)

// Researcher executes research rounds.
type Researcher struct {
	Registry  *source.Registry
	Validator validate.Validator
	Log       *zap.Logger

	// Workers caps concurrent sub-topic × adapter calls.
	Workers int

	// RoundTimeout curtails a round; whatever completed by then is kept.
	RoundTimeout time.Duration

	// now and newID are injection points for deterministic tests.
	now   func() time.Time
	newID func() string
}

// New returns a researcher.
func New(reg *source.Registry, v validate.Validator, cfg types.ResearchConfig, log *zap.Logger) *Researcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Researcher{
		Registry:     reg,
		Validator:    v,
		Log:          log,
		Workers:      cfg.Workers,
		RoundTimeout: cfg.RoundTimeout,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
}

// Round runs every matching sub-topic × adapter call for the given plan slice
// and returns the new findings to merge, deduplicated first-seen-wins in
// (sub-topic, adapter registration) order. A failing adapter or an empty
// sub-topic simply contributes nothing; the round never fails as a whole.
func (r *Researcher) Round(ctx context.Context, subTopics []types.SubTopic, snap types.Snapshot) []types.Finding {
	roundCtx := ctx
	if r.RoundTimeout > 0 {
		var cancel context.CancelFunc
		roundCtx, cancel = context.WithTimeout(ctx, r.RoundTimeout)
		defer cancel()
	}

	// cells[i][j] holds the validated findings for sub-topic i from the
	// adapter at registry index j. Each cell is written by exactly one
	// goroutine, so no locking is needed.
	cells := make([][][]types.Finding, len(subTopics))
	for i := range cells {
		cells[i] = make([][]types.Finding, r.Registry.Len())
	}

	g, gctx := errgroup.WithContext(roundCtx)
	if r.Workers > 0 {
		g.SetLimit(r.Workers)
	}

	for i, st := range subTopics {
		for _, j := range r.Registry.Match(st.PreferredSource) {
			g.Go(func() error {
				raws := r.Registry.Search(gctx, j, st.Query())
				cells[i][j] = r.validateAll(raws, st.ID, j, snap)
				return nil
			})
		}
	}
	// Tasks never return errors; Wait only synchronizes.
	_ = g.Wait()

	return r.merge(cells, snap)
}

// validateAll checks each raw result against the round snapshot immediately
// and converts the survivors to findings.
func (r *Researcher) validateAll(raws []types.RawResult, subTopicID string, adapterIdx int, snap types.Snapshot) []types.Finding {
	provider := r.Registry.Name(adapterIdx)
	var out []types.Finding
	for _, raw := range raws {
		if err := r.Validator.Check(raw, snap); err != nil {
			r.Log.Debug("result rejected",
				zap.String("provider", provider),
				zap.String("url", raw.URL),
				zap.Error(err))
			continue
		}
		out = append(out, types.Finding{
			ID:          r.newID(),
			SubTopicID:  subTopicID,
			Provider:    provider,
			Title:       raw.Title,
			URL:         raw.URL,
			Snippet:     raw.Snippet,
			SourceType:  raw.SourceType,
			RetrievedAt: r.now(),
		})
	}
	return out
}

// merge flattens the result cells in fixed (sub-topic, adapter) order,
// dropping URLs already present in the snapshot or seen earlier in the same
// round. First seen wins.
func (r *Researcher) merge(cells [][][]types.Finding, snap types.Snapshot) []types.Finding {
	seen := make(map[string]struct{})
	var merged []types.Finding
	for i := range cells {
		for j := range cells[i] {
			for _, f := range cells[i][j] {
				key := types.NormalizeURL(f.URL)
				if _, dup := seen[key]; dup || snap.Has(f.URL) {
					continue
				}
				seen[key] = struct{}{}
				merged = append(merged, f)
			}
		}
	}
	return merged
}
