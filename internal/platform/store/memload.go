package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MaterializeFromWarehouse reads the full flattened tables into a new
// MemoryStore. Both evaluation paths then observe the same snapshot, so any
// population divergence points at evaluator logic rather than concurrent
// loads.
func MaterializeFromWarehouse(ctx context.Context, pool *pgxpool.Pool) (*MemoryStore, error) {
	var loadedAt time.Time
	if err := pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(loaded_at), NOW()) FROM warehouse_load`).Scan(&loadedAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	subjects, err := fetchSubjects(ctx, pool)
	if err != nil {
		return nil, err
	}
	events, err := fetchEvents(ctx, pool)
	if err != nil {
		return nil, err
	}

	ms := NewMemoryStore()
	if err := ms.Load(subjects, events, loadedAt); err != nil {
		return nil, fmt.Errorf("materialize snapshot: %w", err)
	}
	return ms, nil
}

func fetchSubjects(ctx context.Context, pool *pgxpool.Pool) ([]Subject, error) {
	rows, err := pool.Query(ctx, `SELECT id, gender, birth_date, active FROM patient`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.Gender, &s.BirthDate, &s.Active); err != nil {
			return nil, fmt.Errorf("scan patient row: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

func fetchEvents(ctx context.Context, pool *pgxpool.Pool) ([]Event, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, patient_id, event_type, status, code_system, code, display, effective_time
		FROM clinical_event`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var eventType string
		if err := rows.Scan(&e.ID, &e.SubjectID, &eventType, &e.Status,
			&e.Coding.System, &e.Coding.Code, &e.Coding.Display, &e.EffectiveTime); err != nil {
			return nil, fmt.Errorf("scan clinical_event row: %w", err)
		}
		e.Type = EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}
