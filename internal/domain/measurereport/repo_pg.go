package measurereport

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reportRepoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates a PostgreSQL-backed report repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &reportRepoPG{pool: pool}
}

const reportCols = `id, measure_id, period_start, period_end,
	eligible_count, qualified_count, excluded_count, satisfied_count,
	performance_rate, method, duration_ms, snapshot_time, created_at`

func (r *reportRepoPG) scanRow(row pgx.Row) (*MeasureReport, error) {
	var mr MeasureReport
	err := row.Scan(&mr.ID, &mr.MeasureID, &mr.PeriodStart, &mr.PeriodEnd,
		&mr.Populations.Eligible, &mr.Populations.Qualified,
		&mr.Populations.Excluded, &mr.Populations.Satisfied,
		&mr.PerformanceRate, &mr.Method, &mr.DurationMillis,
		&mr.SnapshotTime, &mr.CreatedAt)
	return &mr, err
}

func (r *reportRepoPG) Create(ctx context.Context, mr *MeasureReport) error {
	if mr.ID == uuid.Nil {
		mr.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO measure_report (id, measure_id, period_start, period_end,
			eligible_count, qualified_count, excluded_count, satisfied_count,
			performance_rate, method, duration_ms, snapshot_time, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		mr.ID, mr.MeasureID, mr.PeriodStart, mr.PeriodEnd,
		mr.Populations.Eligible, mr.Populations.Qualified,
		mr.Populations.Excluded, mr.Populations.Satisfied,
		mr.PerformanceRate, mr.Method, mr.DurationMillis,
		mr.SnapshotTime, mr.CreatedAt)
	return err
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MeasureReport, error) {
	return r.scanRow(r.pool.QueryRow(ctx,
		`SELECT `+reportCols+` FROM measure_report WHERE id = $1`, id))
}

func (r *reportRepoPG) List(ctx context.Context, measureID string, limit, offset int) ([]*MeasureReport, int, error) {
	where := ``
	args := []interface{}{limit, offset}
	if measureID != "" {
		where = ` WHERE measure_id = $3`
		args = append(args, measureID)
	}

	var total int
	countArgs := args[2:]
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM measure_report`+countWhere(measureID), countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+reportCols+` FROM measure_report`+where+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MeasureReport
	for rows.Next() {
		mr, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, mr)
	}
	return items, total, rows.Err()
}

func countWhere(measureID string) string {
	if measureID == "" {
		return ""
	}
	return ` WHERE measure_id = $1`
}
