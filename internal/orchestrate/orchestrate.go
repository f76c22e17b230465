// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate drives a research job through its state machine:
// PLANNING → RESEARCHING → REVIEWING → (RESEARCHING | WRITING) → DONE, with
// FAILED reachable from any state. The orchestrator is sequential across
// stages and exclusively owns the finding set; parallelism lives entirely
// inside the researcher, which works on immutable snapshots.
package orchestrate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/meshintel/deepresearch/pkg/types"
)

// ErrCancelled marks requester-initiated cancellation, observed at the next
// suspension-point boundary.
var ErrCancelled = errors.New("job cancelled")

// ErrOutage marks escalation after consecutive exhausted-retry completion
// failures. Single failures are absorbed by stage fallbacks; two in a row
// mean the completion service is down and the job fails.
var ErrOutage = errors.New("completion service outage")

// outageThreshold is the number of consecutive failed completion stages that
// escalates to FAILED.
const outageThreshold = 2

// Planner produces plan v1 for a question. On completion failure it returns
// its fallback plan alongside the error.
type Planner interface {
	Plan(ctx context.Context, question types.ResearchQuestion) (types.ResearchPlan, error)
}

// Researcher runs one fan-out round and returns new findings to merge. A
// round never fails; partial results are the normal degraded outcome.
type Researcher interface {
	Round(ctx context.Context, subTopics []types.SubTopic, snap types.Snapshot) []types.Finding
}

// Reviewer judges coverage. On completion failure it returns the degraded
// sufficient=true verdict alongside the error.
type Reviewer interface {
	Review(ctx context.Context, question types.ResearchQuestion, snap types.Snapshot, planVersion int) (types.ReviewVerdict, error)
}

// Writer synthesizes the report. On completion failure it returns the
// bullet-list fallback alongside the error.
type Writer interface {
	Write(ctx context.Context, question types.ResearchQuestion, snap types.Snapshot) (types.ResearchReport, error)
}

// Orchestrator owns one job's shared state and sequencing.
type Orchestrator struct {
	Planner    Planner
	Researcher Researcher
	Reviewer   Reviewer
	Writer     Writer
	Emitter    Emitter
	Log        *zap.Logger

	// OnFindings, when set, is called after each merge round with the
	// newly accepted findings. Used for incremental persistence.
	OnFindings func([]types.Finding)
}

// Result is the terminal outcome of a job. Findings are populated even on
// failure so partial evidence stays inspectable.
type Result struct {
	Stage         Stage
	Report        *types.ResearchReport
	Findings      []types.Finding
	State         types.IterationState
	FailureReason string
}

// Run executes the job to a terminal stage. The returned error is non-nil
// only for the FAILED stage; DONE jobs carrying degraded stage fallbacks
// return a nil error.
func (o *Orchestrator) Run(ctx context.Context, question types.ResearchQuestion) (Result, error) {
	log := o.Log
	if log == nil {
		log = zap.NewNop()
	}

	findings := types.NewFindingSet()
	it := types.IterationState{Iteration: 1, PlanVersion: 1}
	outages := 0

	fail := func(reason string, err error) (Result, error) {
		o.emit(StageFailed, it, findings.Len(), reason)
		log.Warn("job failed", zap.String("reason", reason), zap.Error(err))
		return Result{
			Stage:         StageFailed,
			Findings:      findings.All(),
			State:         it,
			FailureReason: reason,
		}, err
	}

	// PLANNING.
	o.emit(StagePlanning, it, 0, "decomposing question")
	if ctx.Err() != nil {
		return fail("cancelled before planning", ErrCancelled)
	}
	plan, err := o.Planner.Plan(ctx, question)
	if ctx.Err() != nil {
		return fail("cancelled during planning", ErrCancelled)
	}
	if outages = tally(outages, err); outages >= outageThreshold {
		return fail("completion service unavailable during planning", fmt.Errorf("%w: %v", ErrOutage, err))
	}
	it.PlanVersion = plan.Version
	active := plan.SubTopics
	log.Info("plan ready",
		zap.Int("sub_topics", len(active)),
		zap.Bool("fallback", plan.Fallback))

	// RESEARCHING ↔ REVIEWING loop.
	for {
		o.emit(StageResearching, it, findings.Len(), fmt.Sprintf("searching %d sub-topics", len(active)))
		if ctx.Err() != nil {
			return fail("cancelled before research round", ErrCancelled)
		}

		newFindings := o.Researcher.Round(ctx, active, findings.Snapshot())
		if ctx.Err() != nil {
			return fail("cancelled during research round", ErrCancelled)
		}
		var accepted []types.Finding
		for _, f := range newFindings {
			if findings.Add(f) {
				accepted = append(accepted, f)
			}
		}
		if o.OnFindings != nil && len(accepted) > 0 {
			o.OnFindings(accepted)
		}
		log.Info("research round complete",
			zap.Int("iteration", it.Iteration),
			zap.Int("new_findings", len(accepted)),
			zap.Int("total_findings", findings.Len()))

		o.emit(StageReviewing, it, findings.Len(), "judging coverage")
		verdict, err := o.Reviewer.Review(ctx, question, findings.Snapshot(), it.PlanVersion)
		if ctx.Err() != nil {
			return fail("cancelled during review", ErrCancelled)
		}
		if outages = tally(outages, err); outages >= outageThreshold {
			return fail("completion service unavailable during review", fmt.Errorf("%w: %v", ErrOutage, err))
		}
		if verdict.Degraded {
			it.DegradedReview = true
		}

		if nextAfterReview(verdict, it) == StageWriting {
			break
		}
		it = advanceIteration(it)
		active = verdict.GapQueries
	}

	// WRITING.
	o.emit(StageWriting, it, findings.Len(), "synthesizing report")
	if ctx.Err() != nil {
		return fail("cancelled before writing", ErrCancelled)
	}
	rep, err := o.Writer.Write(ctx, question, findings.Snapshot())
	if ctx.Err() != nil {
		return fail("cancelled during writing", ErrCancelled)
	}
	if outages = tally(outages, err); outages >= outageThreshold {
		return fail("completion service unavailable during writing", fmt.Errorf("%w: %v", ErrOutage, err))
	}

	o.emit(StageDone, it, findings.Len(), "report ready")
	return Result{
		Stage:    StageDone,
		Report:   &rep,
		Findings: findings.All(),
		State:    it,
	}, nil
}

// tally tracks consecutive completion-stage failures. Any successful
// completion stage resets the count.
func tally(outages int, err error) int {
	if err == nil {
		return 0
	}
	return outages + 1
}

// emit sends a progress event if an emitter is configured. Emitters are
// non-blocking by contract, so transitions never wait on consumers.
func (o *Orchestrator) emit(stage Stage, it types.IterationState, sources int, msg string) {
	if o.Emitter == nil {
		return
	}
	o.Emitter.Emit(ProgressEvent{
		Stage:        stage,
		Iteration:    it.Iteration,
		Message:      msg,
		SourcesSoFar: sources,
	})
}
