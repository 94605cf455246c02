// Package measurereport assembles population cardinalities into
// standardized measure reports and persists them for downstream viewers.
package measurereport

import (
	"time"

	"github.com/google/uuid"

	"github.com/cqm/cqm/internal/domain/population"
)

// Method tags which evaluation path produced a report.
type Method string

const (
	// MethodMemory is the in-memory snapshot evaluation path.
	MethodMemory Method = "memory"
	// MethodWarehouse is the SQL warehouse evaluation path.
	MethodWarehouse Method = "warehouse"
)

// MeasureReport is the stable export structure any downstream viewer
// consumes. PerformanceRate is nil when the qualified-minus-excluded
// denominator is zero; it is never coerced to 0 or 100, both would be
// misleading. Reports are created fresh per run and never mutated.
type MeasureReport struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	MeasureID       string            `db:"measure_id" json:"measure_id"`
	PeriodStart     time.Time         `db:"period_start" json:"period_start"`
	PeriodEnd       time.Time         `db:"period_end" json:"period_end"`
	Populations     population.Counts `json:"populations"`
	PerformanceRate *float64          `db:"performance_rate" json:"performance_rate"`
	Method          Method            `db:"method" json:"method"`
	Duration        time.Duration     `db:"-" json:"-"`
	DurationMillis  int64             `db:"duration_ms" json:"duration_ms"`
	SnapshotTime    time.Time         `db:"snapshot_time" json:"snapshot_time"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// ToFHIR renders the report as a FHIR MeasureReport resource with the four
// standard population groups and the measure score.
func (mr *MeasureReport) ToFHIR() map[string]interface{} {
	populations := []map[string]interface{}{
		fhirPopulation("initial-population", mr.Populations.Eligible),
		fhirPopulation("denominator", mr.Populations.Qualified),
		fhirPopulation("denominator-exclusion", mr.Populations.Excluded),
		fhirPopulation("numerator", mr.Populations.Satisfied),
	}

	group := map[string]interface{}{"population": populations}
	if mr.PerformanceRate != nil {
		group["measureScore"] = map[string]interface{}{"value": *mr.PerformanceRate}
	}

	return map[string]interface{}{
		"resourceType": "MeasureReport",
		"id":           mr.ID.String(),
		"status":       "complete",
		"type":         "summary",
		"measure":      mr.MeasureID,
		"date":         mr.CreatedAt.Format(time.RFC3339),
		"period": map[string]interface{}{
			"start": mr.PeriodStart.Format("2006-01-02"),
			"end":   mr.PeriodEnd.Format("2006-01-02"),
		},
		"group": []map[string]interface{}{group},
	}
}

func fhirPopulation(code string, count int) map[string]interface{} {
	return map[string]interface{}{
		"code": map[string]interface{}{
			"coding": []map[string]interface{}{
				{
					"system": "http://terminology.hl7.org/CodeSystem/measure-population",
					"code":   code,
				},
			},
		},
		"count": count,
	}
}
