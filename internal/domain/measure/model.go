// Package measure holds clinical quality measure definitions: the four
// predicates a population evaluation runs under, their validation rules, and
// the registry of predefined measures.
package measure

import (
	"errors"
	"fmt"
	"time"

	"github.com/cqm/cqm/internal/platform/store"
)

// ErrInvalidDefinition indicates a malformed measure definition or
// measurement period. It is a caller error, rejected before any store
// access, and is never retried.
var ErrInvalidDefinition = errors.New("invalid measure definition")

// Period is a closed measurement interval [Start, End].
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks the period is non-empty and correctly ordered.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: measurement period is required", ErrInvalidDefinition)
	}
	if p.Start.After(p.End) {
		return fmt.Errorf("%w: period start %s after end %s",
			ErrInvalidDefinition, p.Start.Format("2006-01-02"), p.End.Format("2006-01-02"))
	}
	return nil
}

// SubjectCriteria is the eligibility predicate over subject demographics.
// Ages are whole years at the period end.
type SubjectCriteria struct {
	Gender     string `json:"gender,omitempty"`
	MinAge     *int   `json:"min_age,omitempty"`
	MaxAge     *int   `json:"max_age,omitempty"`
	ActiveOnly bool   `json:"active_only,omitempty"`
}

// Filter translates the criteria into a store filter anchored at the period
// end.
func (c SubjectCriteria) Filter(p Period) store.SubjectFilter {
	return store.SubjectFilter{
		Gender:     c.Gender,
		MinAge:     c.MinAge,
		MaxAge:     c.MaxAge,
		ActiveOnly: c.ActiveOnly,
		AsOf:       p.End,
	}
}

// EventCriteria is a predicate over clinical events: event type, allowed
// statuses, a code set, and a recency window relative to the period end.
// LookbackDays == 0 bounds the window to the measurement period itself.
type EventCriteria struct {
	Type         store.EventType `json:"type"`
	Statuses     []string        `json:"statuses,omitempty"`
	System       string          `json:"system,omitempty"`
	Codes        []string        `json:"codes"`
	LookbackDays int             `json:"lookback_days,omitempty"`
}

// Filter translates the criteria into a store filter. When bounded is false
// the recency window is omitted entirely; exclusion predicates carry no
// recency bound.
func (c EventCriteria) Filter(p Period, bounded bool) store.EventFilter {
	f := store.EventFilter{
		Type:     c.Type,
		Statuses: c.Statuses,
		System:   c.System,
		Codes:    c.Codes,
	}
	if bounded {
		since := p.Start
		if c.LookbackDays > 0 {
			since = p.End.AddDate(0, 0, -c.LookbackDays)
		}
		until := p.End
		f.Since = &since
		f.Until = &until
	}
	return f
}

// Definition is a complete measure: eligibility over subjects, a qualifying
// event predicate, zero or more exclusion predicates, and a satisfaction
// predicate.
type Definition struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Eligibility  SubjectCriteria `json:"eligibility"`
	Qualifying   EventCriteria   `json:"qualifying"`
	Exclusions   []EventCriteria `json:"exclusions,omitempty"`
	Satisfaction EventCriteria   `json:"satisfaction"`
}

var validEventTypes = map[store.EventType]bool{
	store.EventEncounter:   true,
	store.EventObservation: true,
	store.EventProcedure:   true,
	store.EventCondition:   true,
}

// Validate rejects malformed definitions before any store access.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDefinition)
	}
	if d.Eligibility.MinAge != nil && *d.Eligibility.MinAge < 0 {
		return fmt.Errorf("%w: min_age must be non-negative", ErrInvalidDefinition)
	}
	if d.Eligibility.MaxAge != nil && *d.Eligibility.MaxAge < 0 {
		return fmt.Errorf("%w: max_age must be non-negative", ErrInvalidDefinition)
	}
	if d.Eligibility.MinAge != nil && d.Eligibility.MaxAge != nil &&
		*d.Eligibility.MinAge > *d.Eligibility.MaxAge {
		return fmt.Errorf("%w: min_age %d exceeds max_age %d",
			ErrInvalidDefinition, *d.Eligibility.MinAge, *d.Eligibility.MaxAge)
	}
	if err := validateEventCriteria("qualifying", d.Qualifying); err != nil {
		return err
	}
	for i, excl := range d.Exclusions {
		if err := validateEventCriteria(fmt.Sprintf("exclusions[%d]", i), excl); err != nil {
			return err
		}
	}
	return validateEventCriteria("satisfaction", d.Satisfaction)
}

func validateEventCriteria(field string, c EventCriteria) error {
	if !validEventTypes[c.Type] {
		return fmt.Errorf("%w: %s references unknown event type %q",
			ErrInvalidDefinition, field, c.Type)
	}
	if len(c.Codes) == 0 {
		return fmt.Errorf("%w: %s requires at least one code", ErrInvalidDefinition, field)
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("%w: %s lookback_days must be non-negative",
			ErrInvalidDefinition, field)
	}
	return nil
}
