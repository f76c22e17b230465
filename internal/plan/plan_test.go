// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/meshintel/deepresearch/internal/llm"
	"github.com/meshintel/deepresearch/pkg/types"
)

// scriptedClient returns canned responses in order, then repeats the last.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     int
}

func (c *scriptedClient) Complete(_ context.Context, _ llm.Request) (string, error) {
	n := c.calls
	c.calls++
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
	return types.ResearchQuestion{Text: "How do CYP2C9 variants affect warfarin dosing?", RequesterID: "u1"}
}

func TestPlanParsesSubTopics(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"sub_topics": [
		{"description": "CYP2C9 allele frequencies", "keywords": ["CYP2C9", "allele frequency"], "preferred_source": "literature"},
		{"description": "Warfarin dosing guidelines", "keywords": ["warfarin", "dosing"], "preferred_source": "web"},
		{"description": "Interaction with amiodarone", "keywords": [], "preferred_source": "nonsense"}
	]}`}}

	p := New(client, 4, nil)
	got, err := p.Plan(context.Background(), question())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if got.Fallback {
		t.Error("Fallback set on successful plan")
	}
	if len(got.SubTopics) != 3 {
		t.Fatalf("len(SubTopics) = %d, want 3", len(got.SubTopics))
	}
	if got.SubTopics[0].PreferredSource != types.SourceLiterature {
		t.Errorf("SubTopics[0].PreferredSource = %q", got.SubTopics[0].PreferredSource)
	}
	// Unrecognized source types degrade to "any".
	if got.SubTopics[2].PreferredSource != types.SourceAny {
		t.Errorf("SubTopics[2].PreferredSource = %q, want any", got.SubTopics[2].PreferredSource)
	}
	if got.SubTopics[0].ID == got.SubTopics[1].ID {
		t.Error("sub-topic IDs not unique")
	}
}

func TestPlanClampsSubTopicCount(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"sub_topics": [
		{"description": "a"}, {"description": "b"}, {"description": "c"},
		{"description": "d"}, {"description": "e"}, {"description": "f"}
	]}`}}

	p := New(client, 4, nil)
	got, err := p.Plan(context.Background(), question())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(got.SubTopics) != 4 {
		t.Errorf("len(SubTopics) = %d, want clamp to 4", len(got.SubTopics))
	}
}

func TestPlanFallbackAfterDoubleMalformed(t *testing.T) {
	client := &scriptedClient{responses: []string{"not json at all", "still not json"}}

	p := New(client, 4, nil)
	got, err := p.Plan(context.Background(), question())
	if !errors.Is(err, llm.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2 (one corrective retry)", client.calls)
	}

	// The fallback plan carries the raw question verbatim.
	if !got.Fallback {
		t.Error("Fallback not set")
	}
	if len(got.SubTopics) != 1 {
		t.Fatalf("len(SubTopics) = %d, want 1", len(got.SubTopics))
	}
	if got.SubTopics[0].Description != question().Text {
		t.Errorf("fallback description = %q, want raw question", got.SubTopics[0].Description)
	}
}

func TestPlanFallbackOnOutage(t *testing.T) {
	client := &scriptedClient{responses: []string{""}, errs: []error{llm.ErrUnavailable}}

	p := New(client, 4, nil)
	got, err := p.Plan(context.Background(), question())
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if !got.Fallback || len(got.SubTopics) != 1 {
		t.Errorf("expected single-sub-topic fallback plan, got %+v", got)
	}
}

func TestPlanFallbackOnEmptyPlan(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"sub_topics": [{"description": "   "}]}`}}

	p := New(client, 4, nil)
	got, err := p.Plan(context.Background(), question())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !got.Fallback || len(got.SubTopics) != 1 {
		t.Errorf("expected fallback for empty plan, got %+v", got)
	}
}
