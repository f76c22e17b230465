// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package review judges whether the accumulated findings answer the research
// question. One completion call per round; on failure the verdict defaults to
// sufficient so a broken reviewer terminates the loop instead of spinning it,
// with the verdict marked degraded for downstream visibility.
package review

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meshintel/deepresearch/internal/llm"
	"github.com/meshintel/deepresearch/pkg/types"
)

const systemPrompt = `You are a pharmacology research reviewer. Given a research question and the evidence collected so far, you judge whether the evidence is sufficient to answer the question, and if not, you name the missing angles.`

const formatHint = `Respond with a JSON object of the form:
{"sufficient": false, "rationale": "...", "gap_queries": [{"description": "...", "keywords": ["..."], "preferred_source": "literature"}]}
When sufficient is true, gap_queries must be empty. preferred_source must be "literature", "web", or "any". Do not include any text outside the JSON object.`

// reviewResponse is the structured completion output.
type reviewResponse struct {
	Sufficient bool   `json:"sufficient"`
	Rationale  string `json:"rationale"`
	GapQueries []struct {
		Description     string   `json:"description"`
		Keywords        []string `json:"keywords"`
		PreferredSource string   `json:"preferred_source"`
	} `json:"gap_queries"`
}

// Reviewer produces coverage verdicts.
type Reviewer struct {
	Client llm.Client
	Log    *zap.Logger

	// MaxGapQueries clamps the number of gap sub-topics per verdict.
	MaxGapQueries int

	// BudgetChars bounds the serialized finding context. When the set
	// exceeds it, one representative finding per sub-topic is kept first
	// and the remaining budget is filled by recency.
	BudgetChars int
}

// New returns a reviewer.
func New(client llm.Client, cfg types.ResearchConfig, log *zap.Logger) *Reviewer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reviewer{
		Client:        client,
		Log:           log,
		MaxGapQueries: cfg.MaxGapQueries,
		BudgetChars:   cfg.ReviewBudgetChars,
	}
}

// Review judges the finding snapshot against the question. The returned error
// is non-nil only when the completion service failed after its retry budget;
// the verdict alongside it is the degraded safe default (sufficient=true).
func (r *Reviewer) Review(ctx context.Context, question types.ResearchQuestion, snap types.Snapshot, planVersion int) (types.ReviewVerdict, error) {
	user := fmt.Sprintf("Research question:\n%s\n\nEvidence collected (%d findings):\n%s",
		question.Text, snap.Len(), serializeFindings(snap, r.BudgetChars))

	resp, err := llm.Structured[reviewResponse](ctx, r.Client, llm.Request{
		System:     systemPrompt,
		User:       user,
		FormatHint: formatHint,
	})
	if err != nil {
		r.Log.Warn("review degraded to sufficient=true", zap.Error(err))
		return types.ReviewVerdict{
			Sufficient: true,
			Rationale:  "review unavailable; terminating with collected evidence",
			Degraded:   true,
		}, err
	}

	verdict := types.ReviewVerdict{
		Sufficient: resp.Sufficient,
		Rationale:  strings.TrimSpace(resp.Rationale),
	}
	if !resp.Sufficient {
		for i, gq := range resp.GapQueries {
			desc := strings.TrimSpace(gq.Description)
			if desc == "" {
				continue
			}
			verdict.GapQueries = append(verdict.GapQueries, types.SubTopic{
				ID:              fmt.Sprintf("st-v%d-%d", planVersion+1, i+1),
				Description:     desc,
				Keywords:        gq.Keywords,
				PreferredSource: normalizeSource(gq.PreferredSource),
			})
			if len(verdict.GapQueries) == r.MaxGapQueries {
				break
			}
		}
	}
	return verdict, nil
}

// serializeFindings renders findings as compact numbered lines within the
// character budget. Selection keeps one representative (the earliest) finding
// per sub-topic first, then fills the remaining budget newest-first.
func serializeFindings(snap types.Snapshot, budget int) string {
	findings := snap.All()
	if len(findings) == 0 {
		return "(none)"
	}

	selected := selectWithinBudget(findings, budget)

	var b strings.Builder
	for i, f := range selected {
		fmt.Fprintf(&b, "%d. [%s/%s] %s: %s (%s)\n", i+1, f.SubTopicID, f.Provider, f.Title, f.Snippet, f.URL)
	}
	return b.String()
}

// selectWithinBudget picks findings whose rendered size fits the budget:
// representatives per sub-topic first, then the rest by recency. The returned
// slice preserves the original insertion order.
func selectWithinBudget(findings []types.Finding, budget int) []types.Finding {
	if budget <= 0 {
		return findings
	}

	total := 0
	for _, f := range findings {
		total += renderedLen(f)
	}
	if total <= budget {
		return findings
	}

	chosen := make(map[int]bool)
	used := 0

	// Pass 1: earliest finding per sub-topic.
	seenTopic := make(map[string]bool)
	for i, f := range findings {
		if seenTopic[f.SubTopicID] {
			continue
		}
		cost := renderedLen(f)
		if used+cost > budget {
			continue
		}
		seenTopic[f.SubTopicID] = true
		chosen[i] = true
		used += cost
	}

	// Pass 2: remaining budget filled newest-first.
	order := make([]int, 0, len(findings))
	for i := range findings {
		if !chosen[i] {
			order = append(order, i)
		}
	}
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		cost := renderedLen(findings[i])
		if used+cost > budget {
			continue
		}
		chosen[i] = true
		used += cost
	}

	var out []types.Finding
	for i, f := range findings {
		if chosen[i] {
			out = append(out, f)
		}
	}
	return out
}

// renderedLen approximates the serialized size of one finding line.
func renderedLen(f types.Finding) int {
	return len(f.SubTopicID) + len(f.Provider) + len(f.Title) + len(f.Snippet) + len(f.URL) + 16
}

// normalizeSource maps model output onto a known source type, defaulting to
// SourceAny for anything unrecognized.
func normalizeSource(s string) types.SourceType {
	switch types.SourceType(strings.ToLower(strings.TrimSpace(s))) {
	case types.SourceLiterature:
		return types.SourceLiterature
	case types.SourceWeb:
		return types.SourceWeb
	default:
		return types.SourceAny
	}
}
