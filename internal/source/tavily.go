// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/meshintel/deepresearch/internal/httputil"
	"github.com/meshintel/deepresearch/pkg/types"
)

// tavilyAPIBase is the Tavily search endpoint. Declared as a var so tests can
// substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

// TavilyAdapter queries the Tavily general-web search API.
type TavilyAdapter struct {
	Client *http.Client
	Config types.SourceConfig
}

// NewTavilyAdapter returns a Tavily adapter using the shared HTTP settings.
func NewTavilyAdapter(cfg types.SourceConfig) *TavilyAdapter {
	return &TavilyAdapter{Client: httpClient(cfg), Config: cfg}
}

// Name returns the adapter identifier.
func (a *TavilyAdapter) Name() string { return "tavily" }

// Type classifies Tavily as a general-web provider.
func (a *TavilyAdapter) Type() types.SourceType { return types.SourceWeb }

// tavilyRequest is the search request body.
type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// tavilyResponse is the search response body.
type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search posts the query to the Tavily API.
func (a *TavilyAdapter) Search(ctx context.Context, query string, maxResults int) ([]types.RawResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Tavily query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:     a.Config.TavilyAPIKey,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", a.Config.UserAgent)

	resp, err := httputil.Do(ctx, a.Client, req)
	if err != nil {
		return nil, fmt.Errorf("Tavily API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Tavily API returned HTTP %d", resp.StatusCode)
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("parsing Tavily response: %w", err)
	}

	var results []types.RawResult
	for _, r := range tr.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, types.RawResult{
			Title:      strings.TrimSpace(r.Title),
			URL:        r.URL,
			Snippet:    strings.TrimSpace(r.Content),
			SourceType: types.SourceWeb,
		})
	}
	return results, nil
}
