package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/meshintel/deepresearch/internal/llm"
	"github.com/meshintel/deepresearch/internal/orchestrate"
	"github.com/meshintel/deepresearch/pkg/types"
)

// --- stage stubs ---

type stubPlanner struct{}

func (stubPlanner) Plan(_ context.Context, q types.ResearchQuestion) (types.ResearchPlan, error) {
	return types.ResearchPlan{
		Version:   1,
		SubTopics: []types.SubTopic{{ID: "st-1", Description: q.Text}},
	}, nil
}

type stubResearcher struct {
	findings []types.Finding
	block    chan struct{}
}

func (s *stubResearcher) Round(ctx context.Context, _ []types.SubTopic, _ types.Snapshot) []types.Finding {
	if s.block != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-s.block:
		}
	}
	return s.findings
}

type stubReviewer struct{}

func (stubReviewer) Review(_ context.Context, _ types.ResearchQuestion, _ types.Snapshot, _ int) (types.ReviewVerdict, error) {
	return types.ReviewVerdict{Sufficient: true}, nil
}

type stubWriter struct{ err error }

func (s stubWriter) Write(_ context.Context, _ types.ResearchQuestion, snap types.Snapshot) (types.ResearchReport, error) {
	if s.err != nil {
		return types.ResearchReport{MarkdownBody: "# fallback", Fallback: true}, s.err
	}
	var citations []types.Citation
	for i, f := range snap.All() {
		citations = append(citations, types.Citation{Index: i + 1, URL: f.URL})
	}
	return types.ResearchReport{MarkdownBody: "# done", Citations: citations}, nil
}

func testManager(t *testing.T, r orchestrate.Researcher, w orchestrate.Writer) *Manager {
	t.Helper()
	store := testStore(t)
	return NewManager(stubPlanner{}, r, stubReviewer{}, w, store, nil)
}

func TestManagerRunsJobToCompletion(t *testing.T) {
	findings := sampleFindings("job", 2)
	m := testManager(t, &stubResearcher{findings: findings}, stubWriter{})

	jobID, err := m.Start(context.Background(), sampleQuestion())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Wait(jobID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	st, err := m.Status(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Stage != string(orchestrate.StageDone) {
		t.Errorf("Stage = %q, want done", st.Stage)
	}
	if st.SourcesSoFar != 2 {
		t.Errorf("SourcesSoFar = %d, want 2", st.SourcesSoFar)
	}

	// Findings and report landed in the store.
	got, err := m.Store.Findings(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("stored findings = %d, want 2", len(got))
	}
	rep, err := m.Store.Report(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if rep.MarkdownBody == "" {
		t.Error("stored report body empty")
	}
}

func TestManagerCancelFailsJob(t *testing.T) {
	block := make(chan struct{})
	m := testManager(t, &stubResearcher{block: block}, stubWriter{})

	jobID, err := m.Start(context.Background(), sampleQuestion())
	if err != nil {
		t.Fatal(err)
	}

	// Let the job reach the blocking research round.
	deadline := time.After(2 * time.Second)
	for {
		st, err := m.Status(context.Background(), jobID)
		if err != nil {
			t.Fatal(err)
		}
		if st.Stage == string(orchestrate.StageResearching) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never reached the research stage")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := m.Cancel(jobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := m.Wait(jobID); err != nil {
		t.Fatal(err)
	}

	st, err := m.Status(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Stage != string(orchestrate.StageFailed) {
		t.Errorf("Stage = %q, want failed", st.Stage)
	}
	if st.FailureReason == "" {
		t.Error("FailureReason empty after cancellation")
	}

	// The failure outcome is persisted, and no report exists.
	rec, err := m.Store.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stage != string(orchestrate.StageFailed) {
		t.Errorf("stored stage = %q, want failed", rec.Stage)
	}
	if _, err := m.Store.Report(context.Background(), jobID); err == nil {
		t.Error("report stored for a cancelled job")
	}
}

func TestManagerCancelUnknownJob(t *testing.T) {
	m := testManager(t, &stubResearcher{}, stubWriter{})
	if err := m.Cancel("no-such-job"); err == nil {
		t.Fatal("expected error cancelling unknown job")
	}
}

func TestManagerCancelFinishedJob(t *testing.T) {
	m := testManager(t, &stubResearcher{findings: sampleFindings("j", 1)}, stubWriter{})
	jobID, err := m.Start(context.Background(), sampleQuestion())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Wait(jobID); err != nil {
		t.Fatal(err)
	}
	if err := m.Cancel(jobID); err == nil {
		t.Fatal("expected error cancelling finished job")
	}
}

func TestManagerFallbackReportPersisted(t *testing.T) {
	m := testManager(t,
		&stubResearcher{findings: sampleFindings("j", 1)},
		stubWriter{err: llm.ErrUnavailable})

	jobID, err := m.Start(context.Background(), sampleQuestion())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Wait(jobID); err != nil {
		t.Fatal(err)
	}

	st, err := m.Status(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if st.Stage != string(orchestrate.StageDone) {
		t.Fatalf("Stage = %q, want done on writer fallback", st.Stage)
	}
	rep, err := m.Store.Report(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !rep.Fallback {
		t.Error("stored report not flagged as fallback")
	}
}

func TestManagerStatusFromStoreAfterRestart(t *testing.T) {
	store := testStore(t)
	m := NewManager(stubPlanner{}, &stubResearcher{findings: sampleFindings("j", 1)}, stubReviewer{}, stubWriter{}, store, nil)

	jobID, err := m.Start(context.Background(), sampleQuestion())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Wait(jobID); err != nil {
		t.Fatal(err)
	}

	// A fresh manager over the same store only sees the persisted state.
	m2 := NewManager(stubPlanner{}, &stubResearcher{}, stubReviewer{}, stubWriter{}, store, nil)
	st, err := m2.Status(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Status from store: %v", err)
	}
	if st.Stage != string(orchestrate.StageDone) || st.SourcesSoFar != 1 {
		t.Errorf("status = %+v, want done with 1 source", st)
	}
}
