package measurereport

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cqm/cqm/internal/domain/population"
)

func storedReport(t *testing.T, repo *InMemoryRepo, measureID string) *MeasureReport {
	t.Helper()
	report, err := Assemble(population.Counts{Eligible: 10, Qualified: 8, Excluded: 1, Satisfied: 4},
		measureID, testPeriod, MethodMemory, 5*time.Millisecond, date(2024, 12, 1))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if err := repo.Create(context.Background(), report); err != nil {
		t.Fatalf("create: %v", err)
	}
	return report
}

func TestInMemoryRepo_CreateAndGet(t *testing.T) {
	repo := NewInMemoryRepo()
	created := storedReport(t, repo, "m1")

	got, err := repo.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MeasureID != "m1" || got.Populations != created.Populations {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := repo.GetByID(context.Background(), uuid.New()); err == nil {
		t.Error("expected not-found error for unknown ID")
	}
}

func TestInMemoryRepo_ListNewestFirst(t *testing.T) {
	repo := NewInMemoryRepo()
	first := storedReport(t, repo, "m1")
	second := storedReport(t, repo, "m1")

	items, total, err := repo.List(context.Background(), "", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 reports, got total=%d len=%d", total, len(items))
	}
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Error("expected newest-first ordering")
	}
}

func TestInMemoryRepo_ListFiltersAndPages(t *testing.T) {
	repo := NewInMemoryRepo()
	storedReport(t, repo, "m1")
	storedReport(t, repo, "m2")
	storedReport(t, repo, "m1")

	items, total, err := repo.List(context.Background(), "m1", 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Errorf("expected total 2 for m1, got %d", total)
	}
	if len(items) != 1 || items[0].MeasureID != "m1" {
		t.Errorf("expected one m1 report page, got %v", items)
	}

	items, total, err = repo.List(context.Background(), "m1", 10, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 0 {
		t.Errorf("offset past end must return empty page, got %v", items)
	}
}

func TestInMemoryRepo_ReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepo()
	created := storedReport(t, repo, "m1")

	got, err := repo.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.MeasureID = "mutated"

	again, err := repo.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.MeasureID != "m1" {
		t.Error("stored report mutated through a returned copy")
	}
}
