// Package population derives the four measure population subsets
// (eligible, qualified, excluded, satisfied) from the flattened record
// store under a measure definition.
package population

import "sort"

// Stage names a population derivation stage.
type Stage string

const (
	StageEligible  Stage = "eligible"
	StageQualified Stage = "qualified"
	StageExcluded  Stage = "excluded"
	StageSatisfied Stage = "satisfied"
)

// Set is a stage-tagged set of subject identifiers. Membership is set
// semantics: a subject counts once regardless of how many events matched.
type Set struct {
	Stage Stage
	ids   map[string]struct{}
}

// NewSet builds a Set from a list of IDs, deduplicating.
func NewSet(stage Stage, ids []string) Set {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{Stage: stage, ids: m}
}

// Count returns the set cardinality.
func (s Set) Count() int { return len(s.ids) }

// Contains reports membership of id.
func (s Set) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the members in sorted order.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Intersect returns the members of s also present in other, tagged with
// stage.
func (s Set) Intersect(other Set, stage Stage) Set {
	m := make(map[string]struct{})
	for id := range s.ids {
		if other.Contains(id) {
			m[id] = struct{}{}
		}
	}
	return Set{Stage: stage, ids: m}
}

// Subtract returns the members of s not present in other, tagged with
// stage.
func (s Set) Subtract(other Set, stage Stage) Set {
	m := make(map[string]struct{})
	for id := range s.ids {
		if !other.Contains(id) {
			m[id] = struct{}{}
		}
	}
	return Set{Stage: stage, ids: m}
}

// Union returns all members of s and other, tagged with stage.
func (s Set) Union(other Set, stage Stage) Set {
	m := make(map[string]struct{}, len(s.ids)+len(other.ids))
	for id := range s.ids {
		m[id] = struct{}{}
	}
	for id := range other.ids {
		m[id] = struct{}{}
	}
	return Set{Stage: stage, ids: m}
}

// Sets holds the four derived populations of one evaluation run. Invariants:
// Qualified is a subset of Eligible, Excluded a subset of Qualified (the
// reported exclusion overlap), Satisfied a subset of Qualified minus
// Excluded.
type Sets struct {
	Eligible  Set
	Qualified Set
	Excluded  Set
	Satisfied Set
}

// Counts are the four population cardinalities.
type Counts struct {
	Eligible  int `json:"eligible"`
	Qualified int `json:"qualified"`
	Excluded  int `json:"excluded"`
	Satisfied int `json:"satisfied"`
}

// Counts returns the cardinalities of the four sets.
func (s Sets) Counts() Counts {
	return Counts{
		Eligible:  s.Eligible.Count(),
		Qualified: s.Qualified.Count(),
		Excluded:  s.Excluded.Count(),
		Satisfied: s.Satisfied.Count(),
	}
}
