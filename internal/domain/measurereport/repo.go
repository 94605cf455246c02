package measurereport

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists completed measure reports. Cancelled or failed runs
// are never written.
type Repository interface {
	Create(ctx context.Context, mr *MeasureReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*MeasureReport, error)
	List(ctx context.Context, measureID string, limit, offset int) ([]*MeasureReport, int, error)
}
