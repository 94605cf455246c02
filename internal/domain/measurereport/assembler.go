package measurereport

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/population"
)

// ErrInvariantViolation indicates population counts that no correct
// evaluator can produce. It signals an evaluator bug and is fatal: callers
// must halt rather than silently correct the counts.
var ErrInvariantViolation = errors.New("population invariant violation")

// Assemble converts population cardinalities into a MeasureReport. It is a
// pure function apart from the generated ID and creation timestamp.
//
// The performance rate is satisfied / (qualified - excluded) * 100, rounded
// to two decimals; nil when the denominator is zero. Counts must satisfy
// 0 <= satisfied <= qualified - excluded <= eligible.
func Assemble(counts population.Counts, measureID string, period measure.Period,
	method Method, duration time.Duration, snapshot time.Time) (*MeasureReport, error) {

	if err := checkCounts(counts); err != nil {
		return nil, err
	}

	var rate *float64
	if denom := counts.Qualified - counts.Excluded; denom > 0 {
		r := math.Round(float64(counts.Satisfied)/float64(denom)*100*100) / 100
		rate = &r
	}

	return &MeasureReport{
		ID:              uuid.New(),
		MeasureID:       measureID,
		PeriodStart:     period.Start,
		PeriodEnd:       period.End,
		Populations:     counts,
		PerformanceRate: rate,
		Method:          method,
		Duration:        duration,
		DurationMillis:  duration.Milliseconds(),
		SnapshotTime:    snapshot,
		CreatedAt:       time.Now(),
	}, nil
}

func checkCounts(c population.Counts) error {
	if c.Eligible < 0 || c.Qualified < 0 || c.Excluded < 0 || c.Satisfied < 0 {
		return fmt.Errorf("%w: negative count in %+v", ErrInvariantViolation, c)
	}
	if c.Qualified > c.Eligible {
		return fmt.Errorf("%w: qualified %d exceeds eligible %d",
			ErrInvariantViolation, c.Qualified, c.Eligible)
	}
	if c.Excluded > c.Qualified {
		return fmt.Errorf("%w: excluded %d exceeds qualified %d",
			ErrInvariantViolation, c.Excluded, c.Qualified)
	}
	if c.Satisfied > c.Qualified-c.Excluded {
		return fmt.Errorf("%w: satisfied %d exceeds qualified %d minus excluded %d",
			ErrInvariantViolation, c.Satisfied, c.Qualified, c.Excluded)
	}
	return nil
}
