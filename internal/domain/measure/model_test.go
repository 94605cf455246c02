package measure

import (
	"errors"
	"testing"
	"time"

	"github.com/cqm/cqm/internal/platform/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validDefinition() Definition {
	return Definition{
		ID:   "test-measure",
		Name: "Test Measure",
		Eligibility: SubjectCriteria{
			MinAge: intPtr(18),
			MaxAge: intPtr(75),
		},
		Qualifying: EventCriteria{
			Type:  store.EventEncounter,
			Codes: []string{"99213"},
		},
		Satisfaction: EventCriteria{
			Type:  store.EventObservation,
			Codes: []string{"4548-4"},
		},
	}
}

func TestPeriodValidate(t *testing.T) {
	tests := []struct {
		name    string
		period  Period
		wantErr bool
	}{
		{"valid", Period{Start: date(2024, 1, 1), End: date(2024, 12, 31)}, false},
		{"single day", Period{Start: date(2024, 6, 1), End: date(2024, 6, 1)}, false},
		{"inverted", Period{Start: date(2024, 12, 31), End: date(2024, 1, 1)}, true},
		{"missing start", Period{End: date(2024, 12, 31)}, true},
		{"missing end", Period{Start: date(2024, 1, 1)}, true},
		{"zero", Period{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.period.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("expected ErrInvalidDefinition, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"missing id", func(d *Definition) { d.ID = "" }},
		{"negative min age", func(d *Definition) { d.Eligibility.MinAge = intPtr(-1) }},
		{"min above max", func(d *Definition) {
			d.Eligibility.MinAge = intPtr(80)
			d.Eligibility.MaxAge = intPtr(75)
		}},
		{"unknown event type", func(d *Definition) { d.Qualifying.Type = "appointment" }},
		{"empty code set", func(d *Definition) { d.Satisfaction.Codes = nil }},
		{"negative lookback", func(d *Definition) { d.Satisfaction.LookbackDays = -30 }},
		{"bad exclusion", func(d *Definition) {
			d.Exclusions = []EventCriteria{{Type: store.EventProcedure}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDefinition()
			tt.mutate(&d)
			if err := d.Validate(); !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("expected ErrInvalidDefinition, got %v", err)
			}
		})
	}

	t.Run("valid", func(t *testing.T) {
		d := validDefinition()
		if err := d.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestEventCriteriaFilter_Window(t *testing.T) {
	p := Period{Start: date(2024, 1, 1), End: date(2024, 12, 31)}

	t.Run("lookback anchored at period end", func(t *testing.T) {
		c := EventCriteria{Type: store.EventObservation, Codes: []string{"4548-4"}, LookbackDays: 183}
		f := c.Filter(p, true)
		if f.Since == nil || !f.Since.Equal(date(2024, 12, 31).AddDate(0, 0, -183)) {
			t.Errorf("wrong lookback start: %v", f.Since)
		}
		if f.Until == nil || !f.Until.Equal(p.End) {
			t.Errorf("wrong window end: %v", f.Until)
		}
	})

	t.Run("zero lookback uses the period itself", func(t *testing.T) {
		c := EventCriteria{Type: store.EventEncounter, Codes: []string{"99213"}}
		f := c.Filter(p, true)
		if f.Since == nil || !f.Since.Equal(p.Start) {
			t.Errorf("wrong window start: %v", f.Since)
		}
	})

	t.Run("unbounded omits the window", func(t *testing.T) {
		c := EventCriteria{Type: store.EventProcedure, Codes: []string{"27865001"}, LookbackDays: 90}
		f := c.Filter(p, false)
		if f.Since != nil || f.Until != nil {
			t.Errorf("unbounded filter must carry no time window: since=%v until=%v", f.Since, f.Until)
		}
	})
}

func TestSubjectCriteriaFilter_AnchorsAtPeriodEnd(t *testing.T) {
	p := Period{Start: date(2024, 1, 1), End: date(2024, 12, 31)}
	c := SubjectCriteria{Gender: "female", MinAge: intPtr(51), MaxAge: intPtr(74)}
	f := c.Filter(p)
	if !f.AsOf.Equal(p.End) {
		t.Errorf("age anchor must be the period end, got %v", f.AsOf)
	}
	if f.Gender != "female" || *f.MinAge != 51 || *f.MaxAge != 74 {
		t.Errorf("criteria not carried through: %+v", f)
	}
}
