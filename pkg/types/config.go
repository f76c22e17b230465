// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network
// requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "deepresearch/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for stages that call the completion service.
type AIConfig struct {
	// Model is the completion model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the completion API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxTokens caps the completion length (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
}

// SourceConfig holds settings for the search-provider adapters.
type SourceConfig struct {
	HTTPConfig `yaml:",inline"`

	// EnablePubMed controls whether the PubMed literature adapter is
	// registered.
	EnablePubMed bool `json:"enable_pubmed" yaml:"enable_pubmed"`

	// EnableTavily controls whether the Tavily web adapter is registered.
	EnableTavily bool `json:"enable_tavily" yaml:"enable_tavily"`

	// TavilyAPIKey authenticates against the Tavily search API.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`

	// NCBIAPIKey is an optional key for higher PubMed rate limits.
	NCBIAPIKey string `json:"ncbi_api_key,omitempty" yaml:"ncbi_api_key,omitempty"`

	// MaxResultsPerCall caps results per adapter call (default 5).
	MaxResultsPerCall int `json:"max_results_per_call" yaml:"max_results_per_call"`

	// RequestsPerSecond throttles each adapter (default 2).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// ResearchConfig holds settings for the orchestration loop.
type ResearchConfig struct {
	// Workers bounds the concurrent sub-topic × adapter calls in one
	// research round (default 6).
	Workers int `json:"workers" yaml:"workers"`

	// RoundTimeout is the ceiling for one research round, after which the
	// round is curtailed with whatever has completed (default 60s).
	RoundTimeout time.Duration `json:"round_timeout" yaml:"round_timeout"`

	// PlanSubTopics is the upper bound on planner sub-topics (default 4).
	PlanSubTopics int `json:"plan_sub_topics" yaml:"plan_sub_topics"`

	// MaxGapQueries is the upper bound on reviewer gap queries (default 3).
	MaxGapQueries int `json:"max_gap_queries" yaml:"max_gap_queries"`

	// MinSnippetChars is the validator's snippet length floor (default 40).
	MinSnippetChars int `json:"min_snippet_chars" yaml:"min_snippet_chars"`

	// ReviewBudgetChars bounds the serialized finding context given to the
	// reviewer (default 12000).
	ReviewBudgetChars int `json:"review_budget_chars" yaml:"review_budget_chars"`
}

// StoreConfig holds settings for job persistence.
type StoreConfig struct {
	// Dir is the directory holding the jobs database and exports
	// (default "jobs/").
	Dir string `json:"dir" yaml:"dir"`
}

// EngineConfig groups all component configurations for the engine.
type EngineConfig struct {
	AI       AIConfig       `json:"ai" yaml:"ai"`
	Sources  SourceConfig   `json:"sources" yaml:"sources"`
	Research ResearchConfig `json:"research" yaml:"research"`
	Store    StoreConfig    `json:"store" yaml:"store"`
}

// Defaults fills zero-valued fields with their documented defaults and
// returns the result.
func (c EngineConfig) Defaults() EngineConfig {
	if c.AI.Model == "" {
		c.AI.Model = "claude-sonnet-4-5"
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 4096
	}
	if c.Sources.Timeout <= 0 {
		c.Sources.Timeout = 10 * time.Second
	}
	if c.Sources.UserAgent == "" {
		c.Sources.UserAgent = "deepresearch/0.1"
	}
	if c.Sources.MaxResultsPerCall <= 0 {
		c.Sources.MaxResultsPerCall = 5
	}
	if c.Sources.RequestsPerSecond <= 0 {
		c.Sources.RequestsPerSecond = 2
	}
	if c.Research.Workers <= 0 {
		c.Research.Workers = 6
	}
	if c.Research.RoundTimeout <= 0 {
		c.Research.RoundTimeout = 60 * time.Second
	}
	if c.Research.PlanSubTopics <= 0 {
		c.Research.PlanSubTopics = 4
	}
	if c.Research.MaxGapQueries <= 0 {
		c.Research.MaxGapQueries = 3
	}
	if c.Research.MinSnippetChars <= 0 {
		c.Research.MinSnippetChars = 40
	}
	if c.Research.ReviewBudgetChars <= 0 {
		c.Research.ReviewBudgetChars = 12000
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "jobs"
	}
	return c
}
