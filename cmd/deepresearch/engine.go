// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/meshintel/deepresearch/internal/jobs"
	"github.com/meshintel/deepresearch/internal/llm"
	"github.com/meshintel/deepresearch/internal/plan"
	"github.com/meshintel/deepresearch/internal/report"
	"github.com/meshintel/deepresearch/internal/research"
	"github.com/meshintel/deepresearch/internal/review"
	"github.com/meshintel/deepresearch/internal/source"
	"github.com/meshintel/deepresearch/internal/validate"
	"github.com/meshintel/deepresearch/pkg/types"
)

// engineConfig assembles the engine configuration from viper and loaded
// secrets. Flags and environment override the config file.
func engineConfig() types.EngineConfig {
	cfg := types.EngineConfig{
		AI: types.AIConfig{
			Model:     viper.GetString("ai.model"),
			APIKey:    secretDefault("anthropic-api-key", viper.GetString("ai.api_key")),
			MaxTokens: viper.GetInt("ai.max_tokens"),
		},
		Sources: types.SourceConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout: viper.GetDuration("sources.timeout"),
			},
			EnablePubMed:      !viper.IsSet("sources.enable_pubmed") || viper.GetBool("sources.enable_pubmed"),
			EnableTavily:      !viper.IsSet("sources.enable_tavily") || viper.GetBool("sources.enable_tavily"),
			TavilyAPIKey:      secretDefault("tavily-api-key", viper.GetString("sources.tavily_api_key")),
			NCBIAPIKey:        secretDefault("ncbi-api-key", viper.GetString("sources.ncbi_api_key")),
			MaxResultsPerCall: viper.GetInt("sources.max_results_per_call"),
			RequestsPerSecond: viper.GetFloat64("sources.requests_per_second"),
		},
		Research: types.ResearchConfig{
			Workers:           viper.GetInt("research.workers"),
			RoundTimeout:      viper.GetDuration("research.round_timeout"),
			PlanSubTopics:     viper.GetInt("research.plan_sub_topics"),
			MaxGapQueries:     viper.GetInt("research.max_gap_queries"),
			MinSnippetChars:   viper.GetInt("research.min_snippet_chars"),
			ReviewBudgetChars: viper.GetInt("research.review_budget_chars"),
		},
		Store: types.StoreConfig{
			Dir: viper.GetString("store.dir"),
		},
	}
	return cfg.Defaults()
}

// newLogger returns a development logger on stderr when verbose, else a nop
// logger so job progress stays the only stderr output.
func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// newManager wires the full engine: completion client, search adapters,
// the four pipeline stages, and the job store.
func newManager(cfg types.EngineConfig, log *zap.Logger) (*jobs.Manager, func(), error) {
	if cfg.AI.APIKey == "" {
		return nil, nil, fmt.Errorf("completion API key missing: set .secrets/anthropic-api-key or ai.api_key")
	}

	client := &llm.AnthropicClient{
		Config: cfg.AI,
		Client: &http.Client{},
	}

	registry := source.NewRegistry(cfg.Sources, log)
	if cfg.Sources.EnablePubMed {
		registry.Register(source.NewPubMedAdapter(cfg.Sources))
	}
	if cfg.Sources.EnableTavily {
		if cfg.Sources.TavilyAPIKey == "" {
			fmt.Fprintln(os.Stderr, "warning: no Tavily API key, web search disabled")
		} else {
			registry.Register(source.NewTavilyAdapter(cfg.Sources))
		}
	}
	if registry.Len() == 0 {
		return nil, nil, fmt.Errorf("no search providers enabled")
	}

	store, err := jobs.NewStore(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("opening job store: %w", err)
	}

	m := jobs.NewManager(
		plan.New(client, cfg.Research.PlanSubTopics, log),
		research.New(registry, validate.New(cfg.Research.MinSnippetChars), cfg.Research, log),
		review.New(client, cfg.Research, log),
		report.New(client, log),
		store,
		log,
	)
	return m, func() { store.Close() }, nil
}
