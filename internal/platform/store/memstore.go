package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a thread-safe, in-memory RecordStore backed by a
// materialized snapshot of the flattened tables. It is the fast evaluation
// path and the backend used by tests and the sandbox seeder.
type MemoryStore struct {
	mu       sync.RWMutex
	subjects map[string]Subject
	events   []Event
	loadedAt time.Time
	closed   bool
}

// NewMemoryStore creates an empty MemoryStore with the snapshot time set to
// now.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects: make(map[string]Subject),
		loadedAt: time.Now(),
	}
}

// Load replaces the store contents with the given snapshot. Events that
// reference an unknown subject are rejected, keeping the subject-reference
// invariant intact.
func (s *MemoryStore) Load(subjects []Subject, events []Event, loadedAt time.Time) error {
	byID := make(map[string]Subject, len(subjects))
	for _, sub := range subjects {
		byID[sub.ID] = sub
	}
	for _, e := range events {
		if _, ok := byID[e.SubjectID]; !ok {
			return fmt.Errorf("event %s references unknown subject %s", e.ID, e.SubjectID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = byID
	s.events = append([]Event(nil), events...)
	s.loadedAt = loadedAt
	return nil
}

// Close marks the store unreachable. Subsequent reads fail with
// ErrUnavailable; used to exercise partial-failure behaviour.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *MemoryStore) FindSubjects(ctx context.Context, f SubjectFilter) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}

	var ids []string
	for id, sub := range s.subjects {
		if MatchesSubject(sub, f) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) FindEventSubjects(ctx context.Context, f EventFilter) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrUnavailable
	}

	seen := make(map[string]bool)
	var ids []string
	for _, e := range s.events {
		if seen[e.SubjectID] || !MatchesEvent(e, f) {
			continue
		}
		seen[e.SubjectID] = true
		ids = append(ids, e.SubjectID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Snapshot(ctx context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return time.Time{}, ErrUnavailable
	}
	return s.loadedAt, nil
}
