package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WarehouseStore is a RecordStore backed by the flattened PostgreSQL
// warehouse schema (patient + clinical_event tables). It is the SQL
// evaluation path; each Find call is a single round trip.
type WarehouseStore struct {
	pool *pgxpool.Pool
}

// NewWarehouseStore creates a WarehouseStore on top of an existing pool.
func NewWarehouseStore(pool *pgxpool.Pool) *WarehouseStore {
	return &WarehouseStore{pool: pool}
}

func (s *WarehouseStore) FindSubjects(ctx context.Context, f SubjectFilter) ([]string, error) {
	where := []string{"TRUE"}
	var args []interface{}

	if f.Gender != "" {
		args = append(args, f.Gender)
		where = append(where, fmt.Sprintf("gender = $%d", len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "active")
	}
	earliest, latest := BirthCutoffs(f)
	if latest != nil {
		args = append(args, *latest)
		where = append(where, fmt.Sprintf("birth_date <= $%d", len(args)))
	}
	if earliest != nil {
		args = append(args, *earliest)
		where = append(where, fmt.Sprintf("birth_date > $%d", len(args)))
	}

	query := `SELECT id FROM patient WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	return s.queryIDs(ctx, query, args)
}

func (s *WarehouseStore) FindEventSubjects(ctx context.Context, f EventFilter) ([]string, error) {
	where := []string{"TRUE"}
	var args []interface{}

	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if f.System != "" {
		args = append(args, f.System)
		where = append(where, fmt.Sprintf("code_system = $%d", len(args)))
	}
	if len(f.Codes) > 0 {
		args = append(args, f.Codes)
		where = append(where, fmt.Sprintf("code = ANY($%d)", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		where = append(where, fmt.Sprintf("effective_time >= $%d", len(args)))
	}
	if f.Until != nil {
		args = append(args, *f.Until)
		where = append(where, fmt.Sprintf("effective_time <= $%d", len(args)))
	}

	query := `SELECT DISTINCT patient_id FROM clinical_event WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY patient_id`
	return s.queryIDs(ctx, query, args)
}

// Snapshot reports the warehouse's last load time, falling back to the
// database clock when the load log is empty.
func (s *WarehouseStore) Snapshot(ctx context.Context) (time.Time, error) {
	var snapshot time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(loaded_at), NOW()) FROM warehouse_load`).Scan(&snapshot)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return snapshot, nil
}

func (s *WarehouseStore) queryIDs(ctx context.Context, query string, args []interface{}) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subject id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ids, nil
}
