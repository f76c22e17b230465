// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/meshintel/deepresearch/internal/httputil"
	"github.com/meshintel/deepresearch/pkg/types"
)

// pubmedAPIBase is the NCBI E-utilities endpoint. Declared as a var so tests
// can substitute an httptest server.
var pubmedAPIBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// PubMedAdapter queries the PubMed literature database via the NCBI
// E-utilities API: an esearch call for PMIDs followed by an esummary call for
// article metadata.
type PubMedAdapter struct {
	Client *http.Client
	Config types.SourceConfig
}

// NewPubMedAdapter returns a PubMed adapter using the shared HTTP settings.
func NewPubMedAdapter(cfg types.SourceConfig) *PubMedAdapter {
	return &PubMedAdapter{Client: httpClient(cfg), Config: cfg}
}

// Name returns the adapter identifier.
func (a *PubMedAdapter) Name() string { return "pubmed" }

// Type classifies PubMed as a literature provider.
func (a *PubMedAdapter) Type() types.SourceType { return types.SourceLiterature }

// Search runs esearch + esummary and returns one RawResult per article.
func (a *PubMedAdapter) Search(ctx context.Context, query string, maxResults int) ([]types.RawResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty PubMed query")
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	ids, err := a.esearch(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return a.esummary(ctx, ids)
}

// esearch returns the PMIDs matching the query.
func (a *PubMedAdapter) esearch(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmode": {"json"},
		"retmax":  {fmt.Sprintf("%d", maxResults)},
		"sort":    {"relevance"},
	}
	if a.Config.NCBIAPIKey != "" {
		params.Set("api_key", a.Config.NCBIAPIKey)
	}

	var body struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := a.getJSON(ctx, "/esearch.fcgi?"+params.Encode(), &body); err != nil {
		return nil, fmt.Errorf("PubMed esearch: %w", err)
	}
	return body.ESearchResult.IDList, nil
}

// pubmedSummary is one article record in an esummary response.
type pubmedSummary struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	PubDate string `json:"pubdate"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

// esummary fetches article metadata for the given PMIDs.
func (a *PubMedAdapter) esummary(ctx context.Context, ids []string) ([]types.RawResult, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}
	if a.Config.NCBIAPIKey != "" {
		params.Set("api_key", a.Config.NCBIAPIKey)
	}

	var body struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := a.getJSON(ctx, "/esummary.fcgi?"+params.Encode(), &body); err != nil {
		return nil, fmt.Errorf("PubMed esummary: %w", err)
	}

	var results []types.RawResult
	for _, id := range ids {
		raw, ok := body.Result[id]
		if !ok {
			continue
		}
		var s pubmedSummary
		if err := json.Unmarshal(raw, &s); err != nil || s.Title == "" {
			continue
		}
		results = append(results, types.RawResult{
			Title:      strings.TrimSpace(s.Title),
			URL:        fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", s.UID),
			Snippet:    summarySnippet(s),
			SourceType: types.SourceLiterature,
		})
	}
	return results, nil
}

// summarySnippet builds a snippet from the citation metadata. The esummary
// endpoint carries no abstract, so the snippet is the bibliographic line.
func summarySnippet(s pubmedSummary) string {
	var parts []string
	if len(s.Authors) > 0 {
		names := make([]string, 0, len(s.Authors))
		for i, au := range s.Authors {
			if i == 3 {
				names = append(names, "et al.")
				break
			}
			names = append(names, au.Name)
		}
		parts = append(parts, strings.Join(names, ", "))
	}
	parts = append(parts, strings.TrimSpace(s.Title))
	if s.Source != "" {
		venue := s.Source
		if s.PubDate != "" {
			venue += " (" + s.PubDate + ")"
		}
		parts = append(parts, venue)
	}
	return strings.Join(parts, ". ")
}

// getJSON issues a GET against the E-utilities base and decodes the response.
func (a *PubMedAdapter) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pubmedAPIBase+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.Config.UserAgent)

	resp, err := httputil.Do(ctx, a.Client, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
