// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan decomposes a research question into sub-topics via one
// completion call. Parse failures get a single corrective retry; if that also
// fails the planner falls back to one sub-topic carrying the raw question, so
// planning always produces a usable plan.
package plan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meshintel/deepresearch/internal/llm"
	"github.com/meshintel/deepresearch/pkg/types"
)

const systemPrompt = `You are a pharmacology research planner. You decompose a free-text research question into focused sub-topics that can each be answered with a literature or web search.`

const formatHint = `Respond with a JSON object of the form:
{"sub_topics": [{"description": "...", "keywords": ["...", "..."], "preferred_source": "literature"}]}
preferred_source must be "literature", "web", or "any". Do not include any text outside the JSON object.`

// planResponse is the structured completion output.
type planResponse struct {
	SubTopics []planSubTopic `json:"sub_topics"`
}

type planSubTopic struct {
	Description     string   `json:"description"`
	Keywords        []string `json:"keywords"`
	PreferredSource string   `json:"preferred_source"`
}

// Planner produces plan v1 for a research question.
type Planner struct {
	Client llm.Client
	Log    *zap.Logger

	// MaxSubTopics bounds the plan size; the model's count is clamped to
	// it. The bound is an upper limit, not a guarantee.
	MaxSubTopics int
}

// New returns a planner.
func New(client llm.Client, maxSubTopics int, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	if maxSubTopics <= 0 {
		maxSubTopics = 4
	}
	return &Planner{Client: client, Log: log, MaxSubTopics: maxSubTopics}
}

// Plan decomposes the question into plan v1. The returned error is non-nil
// only when the completion service was unreachable after its retry budget; a
// fallback plan is returned alongside it so the caller can continue.
func (p *Planner) Plan(ctx context.Context, question types.ResearchQuestion) (types.ResearchPlan, error) {
	user := fmt.Sprintf("Decompose this research question into at most %d sub-topics:\n\n%s",
		p.MaxSubTopics, question.Text)

	resp, err := llm.Structured[planResponse](ctx, p.Client, llm.Request{
		System:     systemPrompt,
		User:       user,
		FormatHint: formatHint,
	})
	if err != nil {
		p.Log.Warn("planner falling back to single sub-topic", zap.Error(err))
		return fallbackPlan(question), err
	}

	subTopics := convertSubTopics(resp.SubTopics, p.MaxSubTopics)
	if len(subTopics) == 0 {
		p.Log.Warn("planner returned no usable sub-topics, falling back")
		return fallbackPlan(question), nil
	}

	return types.ResearchPlan{Version: 1, SubTopics: subTopics}, nil
}

// fallbackPlan wraps the raw question verbatim as a single sub-topic.
func fallbackPlan(question types.ResearchQuestion) types.ResearchPlan {
	return types.ResearchPlan{
		Version:  1,
		Fallback: true,
		SubTopics: []types.SubTopic{{
			ID:              "st-1",
			Description:     question.Text,
			PreferredSource: types.SourceAny,
		}},
	}
}

// convertSubTopics validates and converts model output, dropping entries with
// no description and clamping the count.
func convertSubTopics(in []planSubTopic, max int) []types.SubTopic {
	var out []types.SubTopic
	for _, st := range in {
		desc := strings.TrimSpace(st.Description)
		if desc == "" {
			continue
		}
		out = append(out, types.SubTopic{
			ID:              fmt.Sprintf("st-%d", len(out)+1),
			Description:     desc,
			Keywords:        cleanKeywords(st.Keywords),
			PreferredSource: normalizeSource(st.PreferredSource),
		})
		if len(out) == max {
			break
		}
	}
	return out
}

func cleanKeywords(in []string) []string {
	var out []string
	for _, kw := range in {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
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
