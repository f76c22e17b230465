// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the deep-research engine:
// the research question, plans and sub-topics, raw and validated findings,
// review verdicts, the final report, and per-stage configuration.
package types

import "time"

// SourceType classifies a search provider by the material it indexes.
type SourceType string

const (
	// SourceLiterature marks providers indexing scientific literature
	// (e.g. PubMed).
	SourceLiterature SourceType = "literature"

	// SourceWeb marks general-web search providers.
	SourceWeb SourceType = "web"

	// SourceAny is used on a SubTopic to accept results from every
	// registered provider.
	SourceAny SourceType = "any"
)

// ResearchQuestion is the free-text question a job answers. Immutable,
// created once per job.
type ResearchQuestion struct {
	// Text is the question exactly as the requester phrased it.
	Text string `json:"text" yaml:"text"`

	// RequesterID identifies who asked.
	RequesterID string `json:"requester_id" yaml:"requester_id"`

	// AskedAt is when the job was started.
	AskedAt time.Time `json:"asked_at" yaml:"asked_at"`
}

// SubTopic is one decomposed facet of the research question. Sub-topics are
// produced by the planner (plan v1) or by the reviewer as gap queries
// (plan v2..vN).
type SubTopic struct {
	// ID uniquely identifies the sub-topic within a job.
	ID string `json:"id" yaml:"id"`

	// Description is a one-line statement of the facet to investigate.
	Description string `json:"description" yaml:"description"`

	// Keywords are search terms derived from the description.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// PreferredSource selects which provider class should handle this
	// sub-topic. SourceAny fans out to every registered adapter.
	PreferredSource SourceType `json:"preferred_source" yaml:"preferred_source"`
}

// Query returns the search string for this sub-topic: the keywords when
// present, otherwise the description verbatim.
func (s SubTopic) Query() string {
	if len(s.Keywords) == 0 {
		return s.Description
	}
	out := s.Keywords[0]
	for _, kw := range s.Keywords[1:] {
		out += " " + kw
	}
	return out
}

// ResearchPlan is a versioned set of sub-topics. Version 1 comes from the
// planner; later versions carry the reviewer's gap queries.
type ResearchPlan struct {
	// Version starts at 1 and increments per gap round.
	Version int `json:"version" yaml:"version"`

	// SubTopics is the active sub-topic set for the next research round.
	SubTopics []SubTopic `json:"sub_topics" yaml:"sub_topics"`

	// Fallback is true when the planner could not produce a structured
	// plan and fell back to the raw question as a single sub-topic.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// RawResult is unvalidated adapter output. Ephemeral: it either becomes a
// Finding through validation or is discarded.
type RawResult struct {
	Title      string     `json:"title" yaml:"title"`
	URL        string     `json:"url" yaml:"url"`
	Snippet    string     `json:"snippet" yaml:"snippet"`
	SourceType SourceType `json:"source_type" yaml:"source_type"`
}

// Finding is a validated RawResult attributed to a sub-topic and a provider.
// Immutable once created.
type Finding struct {
	// ID uniquely identifies the finding within a job.
	ID string `json:"id" yaml:"id"`

	// SubTopicID names the sub-topic whose query surfaced this result.
	SubTopicID string `json:"sub_topic_id" yaml:"sub_topic_id"`

	// Provider is the adapter name that returned the result (e.g. "pubmed").
	Provider string `json:"provider" yaml:"provider"`

	Title      string     `json:"title" yaml:"title"`
	URL        string     `json:"url" yaml:"url"`
	Snippet    string     `json:"snippet" yaml:"snippet"`
	SourceType SourceType `json:"source_type" yaml:"source_type"`

	// RetrievedAt is when the adapter returned the result.
	RetrievedAt time.Time `json:"retrieved_at" yaml:"retrieved_at"`
}

// ReviewVerdict is the reviewer's judgement of coverage. Transient: the
// orchestrator consumes it immediately after the review stage.
type ReviewVerdict struct {
	// Sufficient reports whether the finding set answers the question.
	Sufficient bool `json:"sufficient" yaml:"sufficient"`

	// GapQueries are sub-topics targeting missing angles; empty when
	// Sufficient is true.
	GapQueries []SubTopic `json:"gap_queries" yaml:"gap_queries"`

	// Rationale is the reviewer's stated reasoning, kept for the audit log.
	Rationale string `json:"rationale" yaml:"rationale"`

	// Degraded is true when the verdict is a safe default produced after a
	// completion-service failure rather than a real judgement.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// Citation is one entry in a report's reference list.
type Citation struct {
	Index int    `json:"index" yaml:"index"`
	URL   string `json:"url" yaml:"url"`
	Title string `json:"title" yaml:"title"`
}

// ResearchReport is the terminal artifact of a completed job.
type ResearchReport struct {
	// MarkdownBody is the synthesized report with [n] citation markers.
	MarkdownBody string `json:"markdown_body" yaml:"markdown_body"`

	// Citations is the ordered reference list. Every URL is guaranteed to
	// exist in the finding set the writer was given; fabricated references
	// are dropped before the report is returned.
	Citations []Citation `json:"citations" yaml:"citations"`

	// Fallback is true when the report is the bullet-point enumeration
	// produced after a completion-service failure.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// MaxIterations is the hard ceiling on research rounds. The orchestrator's
// transition function enforces it structurally.
const MaxIterations = 5

// IterationState tracks loop progress for a running job.
type IterationState struct {
	// Iteration is the current research round, starting at 1.
	Iteration int `json:"iteration" yaml:"iteration"`

	// PlanVersion is the version of the active research plan.
	PlanVersion int `json:"plan_version" yaml:"plan_version"`

	// DegradedReview is set when any review round fell back to its safe
	// default after a completion-service failure.
	DegradedReview bool `json:"degraded_review,omitempty" yaml:"degraded_review,omitempty"`
}
