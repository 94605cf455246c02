package measurereport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/population"
	"github.com/cqm/cqm/internal/platform/store"
)

// Path binds an evaluation method tag to the record store backend that
// implements it.
type Path struct {
	Method Method
	Store  store.RecordStore
}

// Service runs single-path measure evaluations and persists their reports.
type Service struct {
	repo   Repository
	paths  map[Method]Path
	logger zerolog.Logger
}

// NewService creates a Service over the given evaluation paths. repo may be
// nil for ephemeral use; reports are then returned but not persisted.
func NewService(repo Repository, logger zerolog.Logger, paths ...Path) *Service {
	byMethod := make(map[Method]Path, len(paths))
	for _, p := range paths {
		byMethod[p.Method] = p
	}
	return &Service{repo: repo, paths: byMethod, logger: logger}
}

// Path returns the configured path for method.
func (s *Service) Path(method Method) (Path, error) {
	p, ok := s.paths[method]
	if !ok {
		return Path{}, fmt.Errorf("no evaluation path configured for method %q", method)
	}
	return p, nil
}

// Evaluate runs def over period on the path registered for method.
func (s *Service) Evaluate(ctx context.Context, def *measure.Definition, period measure.Period, method Method) (*MeasureReport, error) {
	p, err := s.Path(method)
	if err != nil {
		return nil, err
	}
	return s.EvaluatePath(ctx, def, period, p)
}

// EvaluatePath runs the four-stage derivation on one path, measures its
// wall-clock cost, assembles the report and persists it. A cancelled run
// produces no report and is never persisted.
func (s *Service) EvaluatePath(ctx context.Context, def *measure.Definition, period measure.Period, p Path) (*MeasureReport, error) {
	start := time.Now()

	snapshot, err := p.Store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sets, err := population.NewEvaluator(p.Store).Evaluate(ctx, def, period)
	if err != nil {
		return nil, err
	}

	report, err := Assemble(sets.Counts(), def.ID, period, p.Method, time.Since(start), snapshot)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, report); err != nil {
			return nil, fmt.Errorf("persist measure report: %w", err)
		}
	}

	s.logger.Info().
		Str("measure_id", def.ID).
		Str("method", string(p.Method)).
		Int("eligible", report.Populations.Eligible).
		Int("qualified", report.Populations.Qualified).
		Int("excluded", report.Populations.Excluded).
		Int("satisfied", report.Populations.Satisfied).
		Int64("duration_ms", report.DurationMillis).
		Msg("measure evaluated")

	return report, nil
}

// GetReport fetches a persisted report by ID.
func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*MeasureReport, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("report persistence is not configured")
	}
	return s.repo.GetByID(ctx, id)
}

// ListReports pages through persisted reports, optionally filtered by
// measure ID.
func (s *Service) ListReports(ctx context.Context, measureID string, limit, offset int) ([]*MeasureReport, int, error) {
	if s.repo == nil {
		return nil, 0, fmt.Errorf("report persistence is not configured")
	}
	return s.repo.List(ctx, measureID, limit, offset)
}
