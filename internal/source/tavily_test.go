// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meshintel/deepresearch/pkg/types"
)

func TestTavilySearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.APIKey != "tvly_test" {
			t.Errorf("api_key = %q", req.APIKey)
		}
		if req.Query != "drug interaction checker" {
			t.Errorf("query = %q", req.Query)
		}
		fmt.Fprint(w, `{"results": [
			{"title": "Interaction basics", "url": "https://example.org/a", "content": "A long explanation of how drug interactions are classified and assessed in practice."},
			{"title": "No URL entry", "url": "", "content": "should be skipped"}
		]}`)
	}))
	defer ts.Close()

	old := tavilyAPIBase
	tavilyAPIBase = ts.URL
	defer func() { tavilyAPIBase = old }()

	cfg := testSourceCfg()
	cfg.TavilyAPIKey = "tvly_test"
	a := NewTavilyAdapter(cfg)

	got, err := a.Search(context.Background(), "drug interaction checker", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(results) = %d, want 1 (URL-less entry skipped)", len(got))
	}
	if got[0].SourceType != types.SourceWeb {
		t.Errorf("SourceType = %q, want web", got[0].SourceType)
	}
	if got[0].Title != "Interaction basics" {
		t.Errorf("Title = %q", got[0].Title)
	}
}

func TestTavilySearchHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	old := tavilyAPIBase
	tavilyAPIBase = ts.URL
	defer func() { tavilyAPIBase = old }()

	a := NewTavilyAdapter(testSourceCfg())
	if _, err := a.Search(context.Background(), "anything", 5); err == nil {
		t.Fatal("expected error on HTTP 401")
	}
}

func TestTavilyEmptyQuery(t *testing.T) {
	a := NewTavilyAdapter(testSourceCfg())
	if _, err := a.Search(context.Background(), "", 5); err == nil {
		t.Fatal("expected error on empty query")
	}
}
