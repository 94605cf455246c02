package population

import (
	"context"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/platform/store"
)

// Evaluator derives the four population sets from an injected record store.
// The four derivation steps are strictly ordered; each observes the result
// of the previous one. The evaluator itself is stateless and safe for
// concurrent use.
type Evaluator struct {
	store store.RecordStore
}

// NewEvaluator creates an Evaluator over the given store.
func NewEvaluator(s store.RecordStore) *Evaluator {
	return &Evaluator{store: s}
}

// Evaluate runs the four-stage derivation for def over period.
//
//  1. Eligible: subjects matching the demographic criteria.
//  2. Qualified: eligible subjects with at least one qualifying event in the
//     window. Inner-join semantics: no qualifying event, never qualified.
//  3. Excluded: subjects with any event matching any exclusion predicate
//     (no recency bound), reported as the overlap with Qualified.
//  4. Satisfied: qualified, non-excluded subjects with a satisfying event in
//     its window. Exclusion dominates satisfaction.
//
// The definition and period are validated before any store access.
func (ev *Evaluator) Evaluate(ctx context.Context, def *measure.Definition, period measure.Period) (Sets, error) {
	if err := period.Validate(); err != nil {
		return Sets{}, err
	}
	if err := def.Validate(); err != nil {
		return Sets{}, err
	}

	eligibleIDs, err := ev.store.FindSubjects(ctx, def.Eligibility.Filter(period))
	if err != nil {
		return Sets{}, err
	}
	eligible := NewSet(StageEligible, eligibleIDs)

	qualifyingIDs, err := ev.store.FindEventSubjects(ctx, def.Qualifying.Filter(period, true))
	if err != nil {
		return Sets{}, err
	}
	qualified := eligible.Intersect(NewSet(StageQualified, qualifyingIDs), StageQualified)

	excludedAll := NewSet(StageExcluded, nil)
	for _, excl := range def.Exclusions {
		ids, err := ev.store.FindEventSubjects(ctx, excl.Filter(period, false))
		if err != nil {
			return Sets{}, err
		}
		excludedAll = excludedAll.Union(NewSet(StageExcluded, ids), StageExcluded)
	}
	// Exclusion membership is computed over the full store; only the
	// overlap with Qualified is reported.
	excluded := excludedAll.Intersect(qualified, StageExcluded)

	satisfyingIDs, err := ev.store.FindEventSubjects(ctx, def.Satisfaction.Filter(period, true))
	if err != nil {
		return Sets{}, err
	}
	satisfied := qualified.
		Subtract(excluded, StageSatisfied).
		Intersect(NewSet(StageSatisfied, satisfyingIDs), StageSatisfied)

	return Sets{
		Eligible:  eligible,
		Qualified: qualified,
		Excluded:  excluded,
		Satisfied: satisfied,
	}, nil
}
