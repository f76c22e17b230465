// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meshintel/deepresearch/internal/orchestrate"
	"github.com/meshintel/deepresearch/pkg/types"
)

// JobStatus is the externally visible state of a job.
type JobStatus struct {
	JobID         string `json:"job_id" yaml:"job_id"`
	Stage         string `json:"stage" yaml:"stage"`
	Iteration     int    `json:"iteration" yaml:"iteration"`
	SourcesSoFar  int    `json:"sources_so_far" yaml:"sources_so_far"`
	Degraded      bool   `json:"degraded" yaml:"degraded"`
	FailureReason string `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
}

// running tracks one live job.
type running struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status JobStatus
}

func (r *running) update(ev orchestrate.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Stage = string(ev.Stage)
	r.status.Iteration = ev.Iteration
	r.status.SourcesSoFar = ev.SourcesSoFar
}

func (r *running) snapshot() JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// trackEmitter updates the live status on every transition.
type trackEmitter struct {
	job *running
}

func (t trackEmitter) Emit(ev orchestrate.ProgressEvent) {
	t.job.update(ev)
}

// Manager starts research jobs as background goroutines, exposes their live
// status, and persists findings and reports through the store.
type Manager struct {
	Planner    orchestrate.Planner
	Researcher orchestrate.Researcher
	Reviewer   orchestrate.Reviewer
	Writer     orchestrate.Writer
	Store      *Store
	Log        *zap.Logger

	// Emitter, when set, additionally receives every job's progress
	// events, for example a LogEmitter for operator visibility.
	Emitter orchestrate.Emitter

	mu   sync.Mutex
	jobs map[string]*running
}

// NewManager wires a manager around the four stage implementations and a
// store.
func NewManager(p orchestrate.Planner, r orchestrate.Researcher, rev orchestrate.Reviewer, w orchestrate.Writer, store *Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		Planner:    p,
		Researcher: r,
		Reviewer:   rev,
		Writer:     w,
		Store:      store,
		Log:        log,
		jobs:       make(map[string]*running),
	}
}

// Start creates a job for the question and runs it in the background. It
// returns the job ID immediately.
func (m *Manager) Start(ctx context.Context, question types.ResearchQuestion) (string, error) {
	jobID := uuid.NewString()

	if err := m.Store.CreateJob(ctx, jobID, question, string(orchestrate.StagePlanning)); err != nil {
		return "", fmt.Errorf("creating job record: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job := &running{
		cancel: cancel,
		done:   make(chan struct{}),
		status: JobStatus{JobID: jobID, Stage: string(orchestrate.StagePlanning), Iteration: 1},
	}

	m.mu.Lock()
	m.jobs[jobID] = job
	m.mu.Unlock()

	go m.run(jobCtx, jobID, job, question)

	return jobID, nil
}

func (m *Manager) run(ctx context.Context, jobID string, job *running, question types.ResearchQuestion) {
	defer close(job.done)
	defer job.cancel()

	log := m.Log.With(zap.String("job_id", jobID))

	var emitter orchestrate.Emitter = trackEmitter{job: job}
	if m.Emitter != nil {
		emitter = orchestrate.MultiEmitter{emitter, m.Emitter}
	}

	o := &orchestrate.Orchestrator{
		Planner:    m.Planner,
		Researcher: m.Researcher,
		Reviewer:   m.Reviewer,
		Writer:     m.Writer,
		Emitter:    emitter,
		Log:        log,
		OnFindings: func(fs []types.Finding) {
			if err := m.Store.SaveFindings(context.WithoutCancel(ctx), jobID, fs); err != nil {
				log.Warn("persisting findings failed", zap.Error(err))
			}
		},
	}

	res, err := o.Run(ctx, question)
	if err != nil {
		log.Warn("job ended in failure", zap.Error(err))
	}

	// Persistence survives cancellation so partial evidence stays on disk.
	persistCtx := context.WithoutCancel(ctx)

	job.mu.Lock()
	job.status.Stage = string(res.Stage)
	job.status.Iteration = res.State.Iteration
	job.status.SourcesSoFar = len(res.Findings)
	job.status.Degraded = res.State.DegradedReview
	job.status.FailureReason = res.FailureReason
	job.mu.Unlock()

	if uerr := m.Store.UpdateJob(persistCtx, jobID, string(res.Stage), res.State.Iteration,
		res.State.DegradedReview, res.FailureReason); uerr != nil {
		log.Warn("persisting job state failed", zap.Error(uerr))
	}
	if res.Report != nil {
		if serr := m.Store.SaveReport(persistCtx, jobID, *res.Report); serr != nil {
			log.Warn("persisting report failed", zap.Error(serr))
		}
	}
}

// Cancel requests cancellation of a running job. The job moves to its failed
// state at the next stage boundary. Cancelling an unknown or finished job
// returns an error.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not running", jobID)
	}

	select {
	case <-job.done:
		return fmt.Errorf("job %s already finished", jobID)
	default:
	}

	job.cancel()
	return nil
}

// Status returns the job's current state. Live jobs report from memory;
// finished or restarted-over jobs report from the store.
func (m *Manager) Status(ctx context.Context, jobID string) (JobStatus, error) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	m.mu.Unlock()
	if ok {
		return job.snapshot(), nil
	}

	rec, err := m.Store.GetJob(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}

	findings, err := m.Store.Findings(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}

	return JobStatus{
		JobID:         rec.ID,
		Stage:         rec.Stage,
		Iteration:     rec.Iteration,
		SourcesSoFar:  len(findings),
		Degraded:      rec.Degraded,
		FailureReason: rec.FailureReason,
	}, nil
}

// Wait blocks until the job's goroutine has finished. Intended for CLI use
// and tests.
func (m *Manager) Wait(jobID string) error {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not running", jobID)
	}
	<-job.done
	return nil
}
