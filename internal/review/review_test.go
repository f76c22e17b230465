// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/meshintel/deepresearch/internal/llm"
	"github.com/meshintel/deepresearch/pkg/types"
)

// scriptedClient returns canned responses in order, then repeats the last.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
	lastUser  string
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (string, error) {
	n := c.calls
	c.calls++
	c.lastUser = req.User
	if n >= len(c.responses) {
		n = len(c.responses) - 1
	}
	var err error
	if n < len(c.errs) {
		err = c.errs[n]
	}
	return c.responses[n], err
}

func question() types.ResearchQuestion {
	return types.ResearchQuestion{Text: "Does grapefruit juice interact with statins?"}
}

func cfg() types.ResearchConfig {
	return types.ResearchConfig{MaxGapQueries: 3, ReviewBudgetChars: 12000}
}

func finding(i int, subTopic string) types.Finding {
	return types.Finding{
		ID:          fmt.Sprintf("f-%d", i),
		SubTopicID:  subTopic,
		Provider:    "pubmed",
		Title:       fmt.Sprintf("Finding %d", i),
		URL:         fmt.Sprintf("https://example.com/%d", i),
		Snippet:     strings.Repeat("evidence ", 10),
		RetrievedAt: time.Unix(1700000000+int64(i), 0),
	}
}

func snapshot(findings ...types.Finding) types.Snapshot {
	fs := types.NewFindingSet()
	for _, f := range findings {
		fs.Add(f)
	}
	return fs.Snapshot()
}

func TestReviewSufficient(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"sufficient": true, "rationale": "coverage is complete", "gap_queries": []}`,
	}}

	r := New(client, cfg(), nil)
	got, err := r.Review(context.Background(), question(), snapshot(finding(1, "st-1")), 1)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !got.Sufficient {
		t.Error("Sufficient = false, want true")
	}
	if got.Degraded {
		t.Error("Degraded set on healthy review")
	}
	if got.Rationale != "coverage is complete" {
		t.Errorf("Rationale = %q", got.Rationale)
	}
}

func TestReviewGapQueries(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"sufficient": false, "rationale": "missing dose data", "gap_queries": [
			{"description": "statin dose adjustment with grapefruit", "keywords": ["simvastatin", "dose"], "preferred_source": "literature"},
			{"description": "  ", "keywords": []},
			{"description": "regulatory guidance", "preferred_source": "web"}
		]}`,
	}}

	r := New(client, cfg(), nil)
	got, err := r.Review(context.Background(), question(), snapshot(finding(1, "st-1")), 2)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if got.Sufficient {
		t.Fatal("Sufficient = true, want false")
	}
	// The blank gap query is dropped.
	if len(got.GapQueries) != 2 {
		t.Fatalf("len(GapQueries) = %d, want 2", len(got.GapQueries))
	}
	if got.GapQueries[0].PreferredSource != types.SourceLiterature {
		t.Errorf("GapQueries[0].PreferredSource = %q", got.GapQueries[0].PreferredSource)
	}
	// Gap query IDs are namespaced to the next plan version.
	if !strings.HasPrefix(got.GapQueries[0].ID, "st-v3-") {
		t.Errorf("GapQueries[0].ID = %q, want st-v3- prefix", got.GapQueries[0].ID)
	}
}

func TestReviewClampsGapQueries(t *testing.T) {
	var entries []string
	for i := 0; i < 6; i++ {
		entries = append(entries, fmt.Sprintf(`{"description": "gap %d"}`, i))
	}
	client := &scriptedClient{responses: []string{
		`{"sufficient": false, "gap_queries": [` + strings.Join(entries, ",") + `]}`,
	}}

	r := New(client, cfg(), nil)
	got, err := r.Review(context.Background(), question(), snapshot(finding(1, "st-1")), 1)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if len(got.GapQueries) != 3 {
		t.Errorf("len(GapQueries) = %d, want clamp to 3", len(got.GapQueries))
	}
}

func TestReviewDefaultsToSufficientOnOutage(t *testing.T) {
	client := &scriptedClient{responses: []string{""}, errs: []error{llm.ErrUnavailable}}

	r := New(client, cfg(), nil)
	got, err := r.Review(context.Background(), question(), snapshot(finding(1, "st-1")), 1)
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if !got.Sufficient {
		t.Error("degraded verdict must default to sufficient=true")
	}
	if !got.Degraded {
		t.Error("Degraded flag not set")
	}
}

func TestReviewDefaultsToSufficientOnDoubleMalformed(t *testing.T) {
	client := &scriptedClient{responses: []string{"prose", "more prose"}}

	r := New(client, cfg(), nil)
	got, err := r.Review(context.Background(), question(), snapshot(finding(1, "st-1")), 1)
	if !errors.Is(err, llm.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if !got.Sufficient || !got.Degraded {
		t.Errorf("verdict = %+v, want degraded sufficient default", got)
	}
}

func TestSerializeFindingsRespectsBudget(t *testing.T) {
	// Three sub-topics, many findings each. With a tight budget every
	// sub-topic keeps a representative before recency fill.
	var findings []types.Finding
	for topic := 0; topic < 3; topic++ {
		for i := 0; i < 10; i++ {
			f := finding(topic*10+i, fmt.Sprintf("st-%d", topic))
			findings = append(findings, f)
		}
	}

	perLine := renderedLen(findings[0])
	budget := perLine*4 + 10

	selected := selectWithinBudget(findings, budget)

	topics := make(map[string]bool)
	size := 0
	for _, f := range selected {
		topics[f.SubTopicID] = true
		size += renderedLen(f)
	}
	if len(topics) != 3 {
		t.Errorf("representatives cover %d sub-topics, want 3", len(topics))
	}
	if size > budget {
		t.Errorf("selected size %d exceeds budget %d", size, budget)
	}
}

func TestSerializeFindingsUnderBudgetKeepsAll(t *testing.T) {
	findings := []types.Finding{finding(1, "st-1"), finding(2, "st-2")}
	selected := selectWithinBudget(findings, 1<<20)
	if len(selected) != 2 {
		t.Errorf("len(selected) = %d, want all findings", len(selected))
	}
}

func TestReviewPromptContainsFindings(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"sufficient": true}`}}
	r := New(client, cfg(), nil)

	_, err := r.Review(context.Background(), question(), snapshot(finding(7, "st-1")), 1)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if !strings.Contains(client.lastUser, "Finding 7") || !strings.Contains(client.lastUser, "https://example.com/7") {
		t.Error("prompt missing serialized finding")
	}
}
