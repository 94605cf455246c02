package measurereport

import (
	"errors"
	"testing"
	"time"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/population"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var testPeriod = measure.Period{Start: date(2024, 1, 1), End: date(2024, 12, 31)}

func TestAssemble_PerformanceRate(t *testing.T) {
	counts := population.Counts{Eligible: 150, Qualified: 100, Excluded: 10, Satisfied: 45}

	report, err := Assemble(counts, "cms125-breast-cancer-screening", testPeriod,
		MethodMemory, 12*time.Millisecond, date(2024, 12, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.PerformanceRate == nil {
		t.Fatal("expected a rate for non-zero denominator")
	}
	// 45 / (100 - 10) * 100 = 50.00
	if *report.PerformanceRate != 50.00 {
		t.Errorf("rate = %v, want 50.00", *report.PerformanceRate)
	}
	if report.DurationMillis != 12 {
		t.Errorf("duration_ms = %d, want 12", report.DurationMillis)
	}
	if report.Method != MethodMemory {
		t.Errorf("method = %q, want %q", report.Method, MethodMemory)
	}
}

func TestAssemble_RateRounding(t *testing.T) {
	// 1/3 * 100 = 33.333... rounds to 33.33
	counts := population.Counts{Eligible: 3, Qualified: 3, Excluded: 0, Satisfied: 1}
	report, err := Assemble(counts, "m", testPeriod, MethodWarehouse, time.Millisecond, date(2024, 12, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *report.PerformanceRate != 33.33 {
		t.Errorf("rate = %v, want 33.33", *report.PerformanceRate)
	}
}

func TestAssemble_NilRateOnZeroDenominator(t *testing.T) {
	tests := []struct {
		name   string
		counts population.Counts
	}{
		{"empty population", population.Counts{}},
		{"everyone excluded", population.Counts{Eligible: 5, Qualified: 3, Excluded: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Assemble(tt.counts, "m", testPeriod, MethodMemory, time.Millisecond, date(2024, 12, 1))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			// Undefined is nil, never 0: a zero rate means measured
			// failure, a nil rate means nothing was measurable.
			if report.PerformanceRate != nil {
				t.Errorf("expected nil rate, got %v", *report.PerformanceRate)
			}
		})
	}
}

func TestAssemble_InvariantViolations(t *testing.T) {
	tests := []struct {
		name   string
		counts population.Counts
	}{
		{"qualified exceeds eligible", population.Counts{Eligible: 2, Qualified: 3}},
		{"excluded exceeds qualified", population.Counts{Eligible: 5, Qualified: 2, Excluded: 3}},
		{"satisfied exceeds denominator", population.Counts{Eligible: 10, Qualified: 5, Excluded: 2, Satisfied: 4}},
		{"negative count", population.Counts{Eligible: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.counts, "m", testPeriod, MethodMemory, time.Millisecond, date(2024, 12, 1))
			if !errors.Is(err, ErrInvariantViolation) {
				t.Errorf("expected ErrInvariantViolation, got %v", err)
			}
		})
	}
}

func TestToFHIR(t *testing.T) {
	counts := population.Counts{Eligible: 150, Qualified: 100, Excluded: 10, Satisfied: 45}
	report, err := Assemble(counts, "cms125-breast-cancer-screening", testPeriod,
		MethodMemory, time.Millisecond, date(2024, 12, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fhir := report.ToFHIR()
	if fhir["resourceType"] != "MeasureReport" {
		t.Errorf("resourceType = %v", fhir["resourceType"])
	}
	groups, ok := fhir["group"].([]map[string]any)
	if !ok || len(groups) != 1 {
		t.Fatalf("expected one group, got %v", fhir["group"])
	}
	pops, ok := groups[0]["population"].([]map[string]any)
	if !ok || len(pops) != 4 {
		t.Fatalf("expected four populations, got %v", groups[0]["population"])
	}
	if _, ok := groups[0]["measureScore"]; !ok {
		t.Error("expected measureScore for a defined rate")
	}
}
