// Package store defines the read contract against the flattened clinical
// record store, together with its two backends: an in-memory snapshot store
// and a PostgreSQL warehouse store. The engine only ever reads; loading and
// refreshing the flattened rows belongs to an external pipeline.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the record store could not be reached. Reads are
// idempotent, so callers may retry with backoff. An empty but reachable store
// is not an error.
var ErrUnavailable = errors.New("record store unavailable")

// EventType classifies a flattened clinical event row.
type EventType string

const (
	EventEncounter   EventType = "encounter"
	EventObservation EventType = "observation"
	EventProcedure   EventType = "procedure"
	EventCondition   EventType = "condition"
)

// Subject is one row of the flattened patient table.
type Subject struct {
	ID        string    `json:"id"`
	Gender    string    `json:"gender"`
	BirthDate time.Time `json:"birth_date"`
	Active    bool      `json:"active"`
}

// Coding is a coded classification (system + code + display).
type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

// Event is one row of the flattened clinical event table. Every event
// references exactly one existing subject.
type Event struct {
	ID            string    `json:"id"`
	SubjectID     string    `json:"subject_id"`
	Type          EventType `json:"type"`
	Status        string    `json:"status"`
	Coding        Coding    `json:"coding"`
	EffectiveTime time.Time `json:"effective_time"`
}

// SubjectFilter selects subjects by demographic attributes. Zero values mean
// "any". Ages are computed as whole years at AsOf.
type SubjectFilter struct {
	Gender     string
	MinAge     *int
	MaxAge     *int
	ActiveOnly bool
	AsOf       time.Time
}

// EventFilter selects events by classification, status and effective time.
// Empty slices mean "any". The time bounds are inclusive.
type EventFilter struct {
	Type     EventType
	Statuses []string
	System   string
	Codes    []string
	Since    *time.Time
	Until    *time.Time
}

// RecordStore is the read contract the evaluation engine consumes. Both
// methods return distinct subject identifiers; set semantics are the
// caller's concern.
type RecordStore interface {
	// FindSubjects returns IDs of subjects matching the demographic filter.
	FindSubjects(ctx context.Context, f SubjectFilter) ([]string, error)
	// FindEventSubjects returns IDs of subjects having at least one event
	// matching the filter.
	FindEventSubjects(ctx context.Context, f EventFilter) ([]string, error)
	// Snapshot returns the time of the data snapshot this store reads from.
	// Reports are tagged with it so divergence caused by concurrent loads
	// can be told apart from evaluator bugs.
	Snapshot(ctx context.Context) (time.Time, error)
}

// BirthCutoffs converts an age range at asOf into birth-date bounds.
// A subject aged MinAge or older was born on or before latest; a subject
// aged MaxAge or younger was born after earliest. Nil means unbounded.
// Both backends use the same cutoff arithmetic so age semantics cannot
// drift between evaluation paths.
func BirthCutoffs(f SubjectFilter) (earliest, latest *time.Time) {
	if f.MinAge != nil {
		t := f.AsOf.AddDate(-*f.MinAge, 0, 0)
		latest = &t
	}
	if f.MaxAge != nil {
		t := f.AsOf.AddDate(-(*f.MaxAge + 1), 0, 0)
		earliest = &t
	}
	return earliest, latest
}

// MatchesSubject reports whether s satisfies the demographic filter.
func MatchesSubject(s Subject, f SubjectFilter) bool {
	if f.Gender != "" && s.Gender != f.Gender {
		return false
	}
	if f.ActiveOnly && !s.Active {
		return false
	}
	earliest, latest := BirthCutoffs(f)
	if latest != nil && s.BirthDate.After(*latest) {
		return false
	}
	if earliest != nil && !s.BirthDate.After(*earliest) {
		return false
	}
	return true
}

// MatchesEvent reports whether e satisfies the event filter.
func MatchesEvent(e Event, f EventFilter) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !containsString(f.Statuses, e.Status) {
		return false
	}
	if f.System != "" && e.Coding.System != f.System {
		return false
	}
	if len(f.Codes) > 0 && !containsString(f.Codes, e.Coding.Code) {
		return false
	}
	if f.Since != nil && e.EffectiveTime.Before(*f.Since) {
		return false
	}
	if f.Until != nil && e.EffectiveTime.After(*f.Until) {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
