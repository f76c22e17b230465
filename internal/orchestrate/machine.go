// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"github.com/meshintel/deepresearch/pkg/types"
)

// Stage is one state of the research job.
type Stage string

const (
	StagePlanning    Stage = "planning"
	StageResearching Stage = "researching"
	StageReviewing   Stage = "reviewing"
	StageWriting     Stage = "writing"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Terminal reports whether a stage ends the job.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// nextAfterReview is the transition guard out of REVIEWING. It is the single
// place the iteration ceiling is enforced: another research round happens iff
// the verdict is insufficient, gap queries exist, and the ceiling has not
// been reached. Everything else proceeds to WRITING.
func nextAfterReview(verdict types.ReviewVerdict, it types.IterationState) Stage {
	if !verdict.Sufficient && len(verdict.GapQueries) > 0 && it.Iteration < types.MaxIterations {
		return StageResearching
	}
	return StageWriting
}

// advanceIteration applies the REVIEWING → RESEARCHING bookkeeping: the
// iteration count and plan version move together.
func advanceIteration(it types.IterationState) types.IterationState {
	it.Iteration++
	it.PlanVersion++
	return it
}
