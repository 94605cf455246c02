// Package comparison runs one measure evaluation through two independent
// backends and reconciles their reports, recording relative speed.
package comparison

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/measurereport"
)

// RateTolerance is the maximum performance-rate difference still considered
// equal: two decimal places, since one path computes from integer counts and
// the other may read a pre-rounded percentage column.
const RateTolerance = 0.005

// State is the terminal state of a comparison run.
type State string

const (
	StateMatched    State = "matched"
	StateMismatched State = "mismatched"
	StateFailed     State = "failed"
)

// Result pairs the two path reports with the reconciliation verdict.
// SpeedupRatio (duration A over duration B) is computed even on mismatch,
// but is only meaningful when PopulationsMatch is true.
type Result struct {
	ReportA          *measurereport.MeasureReport `json:"report_a"`
	ReportB          *measurereport.MeasureReport `json:"report_b"`
	PopulationsMatch bool                         `json:"populations_match"`
	SpeedupRatio     float64                      `json:"speedup_ratio"`
	State            State                        `json:"state"`
}

// Comparator executes both evaluation paths and reconciles their outputs.
// The two paths share no mutable state; reconciliation only reads their
// reports.
type Comparator struct {
	svc    *measurereport.Service
	pathA  measurereport.Path
	pathB  measurereport.Path
	logger zerolog.Logger
}

// NewComparator creates a Comparator over the two paths. Path A is the
// in-memory snapshot evaluator by convention, path B the SQL warehouse.
func NewComparator(svc *measurereport.Service, pathA, pathB measurereport.Path, logger zerolog.Logger) *Comparator {
	return &Comparator{svc: svc, pathA: pathA, pathB: pathB, logger: logger}
}

// Compare runs def over period on both paths concurrently, waits for both,
// and reconciles. A population mismatch is a data outcome, not an error: the
// Result carries both reports for diagnosis. A single-path failure yields a
// PartialEvaluationError with the surviving report retained; the comparator
// never retries. Cancelling ctx cancels both in-flight paths and produces no
// result.
func (c *Comparator) Compare(ctx context.Context, def *measure.Definition, period measure.Period) (*Result, error) {
	// Fail fast: reject bad definitions before either path touches a store.
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var (
		reportA, reportB *measurereport.MeasureReport
		errA, errB       error
	)

	// The paths are independent; one failing must not abort the other, so
	// errors are collected per path rather than through the group.
	var g errgroup.Group
	g.Go(func() error {
		reportA, errA = c.svc.EvaluatePath(ctx, def, period, c.pathA)
		return nil
	})
	g.Go(func() error {
		reportB, errB = c.svc.EvaluatePath(ctx, def, period, c.pathB)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch {
	case errA != nil && errB != nil:
		return nil, fmt.Errorf("both evaluation paths failed: %s: %v; %s: %v",
			c.pathA.Method, errA, c.pathB.Method, errB)
	case errA != nil:
		return nil, &PartialEvaluationError{FailedPath: c.pathA.Method, Cause: errA, Report: reportB}
	case errB != nil:
		return nil, &PartialEvaluationError{FailedPath: c.pathB.Method, Cause: errB, Report: reportA}
	}

	return c.reconcile(reportA, reportB), nil
}

func (c *Comparator) reconcile(a, b *measurereport.MeasureReport) *Result {
	match := a.Populations == b.Populations && ratesAgree(a.PerformanceRate, b.PerformanceRate)

	var speedup float64
	if b.Duration > 0 {
		speedup = float64(a.Duration) / float64(b.Duration)
	}

	state := StateMatched
	if !match {
		state = StateMismatched
		c.logger.Warn().
			Str("measure_id", a.MeasureID).
			Interface("populations_a", a.Populations).
			Interface("populations_b", b.Populations).
			Interface("rate_a", a.PerformanceRate).
			Interface("rate_b", b.PerformanceRate).
			Msg("evaluation paths disagree")
	}

	return &Result{
		ReportA:          a,
		ReportB:          b,
		PopulationsMatch: match,
		SpeedupRatio:     speedup,
		State:            state,
	}
}

// ratesAgree treats two rates as equal when both are undefined or they
// differ by no more than RateTolerance.
func ratesAgree(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= RateTolerance
}
