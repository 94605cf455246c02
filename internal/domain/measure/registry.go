package measure

import "github.com/cqm/cqm/internal/platform/store"

const (
	systemSNOMED = "http://snomed.info/sct"
	systemLOINC  = "http://loinc.org"
	systemCPT    = "http://www.ama-assn.org/go/cpt"
)

func intPtr(v int) *int { return &v }

// PredefinedMeasures is the registry of built-in measures. Custom
// definitions submitted over the API go through the same validation.
var PredefinedMeasures = []Definition{
	{
		ID:          "cms125-breast-cancer-screening",
		Name:        "Breast Cancer Screening",
		Description: "Women 51-74 with a qualifying office visit who had a mammogram within 27 months, excluding bilateral mastectomy",
		Eligibility: SubjectCriteria{
			Gender:     "female",
			MinAge:     intPtr(51),
			MaxAge:     intPtr(74),
			ActiveOnly: true,
		},
		Qualifying: EventCriteria{
			Type:     store.EventEncounter,
			Statuses: []string{"finished"},
			System:   systemCPT,
			Codes: []string{
				"99201", "99202", "99203", "99204", "99205",
				"99211", "99212", "99213", "99214", "99215",
			},
			LookbackDays: 730,
		},
		Exclusions: []EventCriteria{
			{
				Type:     store.EventProcedure,
				Statuses: []string{"completed"},
				// Bilateral mastectomy
				Codes: []string{"27865001", "0HTV0ZZ", "0HTU0ZZ"},
			},
		},
		Satisfaction: EventCriteria{
			Type:     store.EventObservation,
			Statuses: []string{"final"},
			System:   systemLOINC,
			// Mammography
			Codes:        []string{"24606-6", "24605-8", "24610-8"},
			LookbackDays: 821, // 27 months
		},
	},
	{
		ID:          "diabetes-hba1c-gap",
		Name:        "Diabetes HbA1c Testing",
		Description: "Active patients 18-75 with diabetes who had an HbA1c result within 6 months, excluding hospice admissions",
		Eligibility: SubjectCriteria{
			MinAge:     intPtr(18),
			MaxAge:     intPtr(75),
			ActiveOnly: true,
		},
		Qualifying: EventCriteria{
			Type:     store.EventCondition,
			Statuses: []string{"active"},
			System:   systemSNOMED,
			// Type 1, Type 2, diabetes mellitus, diabetes unspecified
			Codes: []string{"44054006", "46635009", "73211009", "313436004"},
		},
		Exclusions: []EventCriteria{
			{
				Type:     store.EventProcedure,
				Statuses: []string{"completed", "in-progress"},
				// Admission to hospice
				Codes: []string{"305336008"},
			},
		},
		Satisfaction: EventCriteria{
			Type:     store.EventObservation,
			Statuses: []string{"final"},
			System:   systemLOINC,
			// HbA1c
			Codes:        []string{"4548-4", "4549-2", "17856-6"},
			LookbackDays: 183,
		},
	},
}

// FindMeasure looks up a predefined measure by ID. Returns nil when the ID
// is unknown.
func FindMeasure(id string) *Definition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
