package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	ms := NewMemoryStore()
	subjects := []Subject{
		{ID: "s1", Gender: "female", BirthDate: date(1960, 3, 1), Active: true},
		{ID: "s2", Gender: "female", BirthDate: date(1990, 7, 1), Active: true},
		{ID: "s3", Gender: "male", BirthDate: date(1955, 1, 1), Active: false},
	}
	events := []Event{
		{ID: "e1", SubjectID: "s1", Type: EventEncounter, Status: "finished",
			Coding: Coding{Code: "99213"}, EffectiveTime: date(2024, 5, 1)},
		{ID: "e2", SubjectID: "s1", Type: EventEncounter, Status: "finished",
			Coding: Coding{Code: "99213"}, EffectiveTime: date(2024, 6, 1)},
		{ID: "e3", SubjectID: "s2", Type: EventObservation, Status: "final",
			Coding: Coding{Code: "4548-4"}, EffectiveTime: date(2024, 8, 1)},
	}
	if err := ms.Load(subjects, events, date(2024, 12, 1)); err != nil {
		t.Fatalf("load: %v", err)
	}
	return ms
}

func TestMemoryStore_FindSubjects(t *testing.T) {
	ms := seededStore(t)

	ids, err := ms.FindSubjects(context.Background(),
		SubjectFilter{Gender: "female", AsOf: date(2024, 12, 31)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("expected [s1 s2], got %v", ids)
	}
}

func TestMemoryStore_FindEventSubjects_Deduplicates(t *testing.T) {
	ms := seededStore(t)

	// s1 has two matching encounters but must appear once.
	ids, err := ms.FindEventSubjects(context.Background(),
		EventFilter{Type: EventEncounter, Codes: []string{"99213"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "s1" {
		t.Errorf("expected [s1], got %v", ids)
	}
}

func TestMemoryStore_EmptyButReachable(t *testing.T) {
	ms := NewMemoryStore()

	ids, err := ms.FindSubjects(context.Background(), SubjectFilter{AsOf: time.Now()})
	if err != nil {
		t.Fatalf("empty store must not error, got: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no subjects, got %v", ids)
	}
}

func TestMemoryStore_ClosedReturnsUnavailable(t *testing.T) {
	ms := seededStore(t)
	ms.Close()

	if _, err := ms.FindSubjects(context.Background(), SubjectFilter{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if _, err := ms.FindEventSubjects(context.Background(), EventFilter{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if _, err := ms.Snapshot(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestMemoryStore_RejectsDanglingSubjectReference(t *testing.T) {
	ms := NewMemoryStore()
	err := ms.Load(
		[]Subject{{ID: "s1", BirthDate: date(1980, 1, 1)}},
		[]Event{{ID: "e1", SubjectID: "ghost", Type: EventEncounter,
			EffectiveTime: date(2024, 1, 1)}},
		time.Now())
	if err == nil {
		t.Fatal("expected load to reject event referencing unknown subject")
	}
}

func TestMemoryStore_Snapshot(t *testing.T) {
	ms := seededStore(t)
	snap, err := ms.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.Equal(date(2024, 12, 1)) {
		t.Errorf("expected snapshot 2024-12-01, got %v", snap)
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ms := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ms.FindSubjects(ctx, SubjectFilter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
