package measurereport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// InMemoryRepo is a thread-safe Repository used by tests and ephemeral
// deployments without a report database.
type InMemoryRepo struct {
	mu      sync.RWMutex
	reports []*MeasureReport
}

// NewInMemoryRepo creates an empty in-memory report repository.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{}
}

func (r *InMemoryRepo) Create(ctx context.Context, mr *MeasureReport) error {
	if mr.ID == uuid.Nil {
		mr.ID = uuid.New()
	}
	cp := *mr
	r.mu.Lock()
	// Newest first, matching the pg repo's ORDER BY created_at DESC.
	r.reports = append([]*MeasureReport{&cp}, r.reports...)
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*MeasureReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, mr := range r.reports {
		if mr.ID == id {
			cp := *mr
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("measure report %s not found", id)
}

func (r *InMemoryRepo) List(ctx context.Context, measureID string, limit, offset int) ([]*MeasureReport, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*MeasureReport
	for _, mr := range r.reports {
		if measureID == "" || mr.MeasureID == measureID {
			matched = append(matched, mr)
		}
	}

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	items := make([]*MeasureReport, 0, end-offset)
	for _, mr := range matched[offset:end] {
		cp := *mr
		items = append(items, &cp)
	}
	return items, total, nil
}
