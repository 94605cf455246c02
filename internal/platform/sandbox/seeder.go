// Package sandbox generates reproducible synthetic clinical data for demo
// environments and tests. The generated cohort is shaped so that the
// predefined measures produce non-trivial populations: a share of subjects
// gets qualifying encounters, a smaller share exclusion procedures, and a
// smaller share again satisfying observations.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cqm/cqm/internal/platform/store"
)

// SeedConfig controls the volume and shape of generated synthetic data.
type SeedConfig struct {
	SubjectCount int
	Seed         int64
	// Anchor is the reference date events are generated around,
	// typically the measurement period end.
	Anchor time.Time
}

// DefaultSeedConfig returns a config producing a moderate demo cohort.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		SubjectCount: 200,
		Seed:         1,
		Anchor:       time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

// Generate produces a deterministic cohort for the given config. The same
// seed always yields the same subjects and events, so both store backends
// can be loaded with identical snapshots.
func Generate(cfg SeedConfig) ([]store.Subject, []store.Event) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	subjects := make([]store.Subject, 0, cfg.SubjectCount)
	var events []store.Event
	eventID := 0
	nextEventID := func() string {
		eventID++
		return fmt.Sprintf("event-%04d", eventID)
	}

	for i := 0; i < cfg.SubjectCount; i++ {
		id := fmt.Sprintf("subject-%03d", i+1)
		gender := "female"
		if rng.Intn(2) == 0 {
			gender = "male"
		}
		age := 20 + rng.Intn(70)
		sub := store.Subject{
			ID:        id,
			Gender:    gender,
			BirthDate: cfg.Anchor.AddDate(-age, 0, -rng.Intn(364)),
			Active:    rng.Intn(10) != 0,
		}
		subjects = append(subjects, sub)

		// ~70% get a qualifying office visit within the last two years.
		if rng.Intn(10) < 7 {
			events = append(events, store.Event{
				ID:        nextEventID(),
				SubjectID: id,
				Type:      store.EventEncounter,
				Status:    "finished",
				Coding: store.Coding{
					System: "http://www.ama-assn.org/go/cpt",
					Code:   "99213",
				},
				EffectiveTime: cfg.Anchor.AddDate(0, 0, -rng.Intn(700)),
			})
		}

		// ~40% have an active diabetes condition.
		if rng.Intn(10) < 4 {
			events = append(events, store.Event{
				ID:        nextEventID(),
				SubjectID: id,
				Type:      store.EventCondition,
				Status:    "active",
				Coding: store.Coding{
					System: "http://snomed.info/sct",
					Code:   "73211009",
				},
				EffectiveTime: cfg.Anchor.AddDate(0, 0, -rng.Intn(350)),
			})
		}

		// ~5% carry an exclusion procedure.
		if rng.Intn(20) == 0 {
			code := "27865001"
			if rng.Intn(2) == 0 {
				code = "305336008"
			}
			events = append(events, store.Event{
				ID:            nextEventID(),
				SubjectID:     id,
				Type:          store.EventProcedure,
				Status:        "completed",
				Coding:        store.Coding{Code: code},
				EffectiveTime: cfg.Anchor.AddDate(-1, 0, -rng.Intn(300)),
			})
		}

		// ~half get a screening mammogram, ~half an HbA1c result.
		if rng.Intn(2) == 0 {
			events = append(events, store.Event{
				ID:        nextEventID(),
				SubjectID: id,
				Type:      store.EventObservation,
				Status:    "final",
				Coding: store.Coding{
					System: "http://loinc.org",
					Code:   "24606-6",
				},
				EffectiveTime: cfg.Anchor.AddDate(0, 0, -rng.Intn(800)),
			})
		}
		if rng.Intn(2) == 0 {
			events = append(events, store.Event{
				ID:        nextEventID(),
				SubjectID: id,
				Type:      store.EventObservation,
				Status:    "final",
				Coding: store.Coding{
					System: "http://loinc.org",
					Code:   "4548-4",
				},
				EffectiveTime: cfg.Anchor.AddDate(0, 0, -rng.Intn(170)),
			})
		}
	}

	return subjects, events
}

// LoadMemory generates a cohort and loads it into a fresh MemoryStore.
func LoadMemory(cfg SeedConfig) (*store.MemoryStore, error) {
	subjects, events := Generate(cfg)
	ms := store.NewMemoryStore()
	if err := ms.Load(subjects, events, time.Now()); err != nil {
		return nil, err
	}
	return ms, nil
}

// LoadWarehouse writes the same cohort into the flattened warehouse tables,
// replacing existing rows, and records the load time. Loading both backends
// from one Generate call gives the comparator a consistent snapshot.
func LoadWarehouse(ctx context.Context, pool *pgxpool.Pool, subjects []store.Subject, events []store.Event) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"clinical_event", "patient"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, s := range subjects {
		if _, err := tx.Exec(ctx, `
			INSERT INTO patient (id, gender, birth_date, active)
			VALUES ($1,$2,$3,$4)`,
			s.ID, s.Gender, s.BirthDate, s.Active); err != nil {
			return fmt.Errorf("insert patient %s: %w", s.ID, err)
		}
	}
	for _, e := range events {
		if _, err := tx.Exec(ctx, `
			INSERT INTO clinical_event (id, patient_id, event_type, status,
				code_system, code, display, effective_time)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			e.ID, e.SubjectID, string(e.Type), e.Status,
			e.Coding.System, e.Coding.Code, e.Coding.Display, e.EffectiveTime); err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}

	if _, err := tx.Exec(ctx, `INSERT INTO warehouse_load (loaded_at) VALUES (NOW())`); err != nil {
		return fmt.Errorf("record warehouse load: %w", err)
	}

	return tx.Commit(ctx)
}
