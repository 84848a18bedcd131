package store

import (
	"context"
	"sync"
)

// MemoryHistoryStore is an in-memory HistoryStore for tests and dry runs.
type MemoryHistoryStore struct {
	mu      sync.Mutex
	entries []TableHistory
	writes  int
}

// NewMemoryHistoryStore creates a MemoryHistoryStore seeded with copies of
// the given histories.
func NewMemoryHistoryStore(seed ...TableHistory) *MemoryHistoryStore {
	s := &MemoryHistoryStore{}
	for _, h := range seed {
		s.entries = append(s.entries, h.Clone())
	}
	return s
}

// Writes returns the number of successful mutations.
func (s *MemoryHistoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *MemoryHistoryStore) All(_ context.Context) ([]TableHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TableHistory, len(s.entries))
	for i, h := range s.entries {
		out[i] = h.Clone()
	}
	return out, nil
}

func (s *MemoryHistoryStore) Get(_ context.Context, table string) (*TableHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.entries, table)
	if i < 0 {
		return nil, ErrTableNotFound
	}
	cp := s.entries[i].Clone()
	return &cp, nil
}

func (s *MemoryHistoryStore) Add(_ context.Context, h TableHistory, rec *MigrationRecord) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) { return addHistory(all, h, rec) })
}

func (s *MemoryHistoryStore) AddMigration(_ context.Context, table string, rec MigrationRecord) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) { return addMigration(all, table, rec) })
}

func (s *MemoryHistoryStore) UpdateMigration(_ context.Context, table string, rec MigrationRecord) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) { return updateMigration(all, table, rec) })
}

func (s *MemoryHistoryStore) ForgetMigration(_ context.Context, table, name string) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) { return forgetMigration(all, table, name) })
}

func (s *MemoryHistoryStore) Forget(_ context.Context, table string) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) { return forget(all, table) })
}

func (s *MemoryHistoryStore) mutate(fn func([]TableHistory) ([]TableHistory, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := make([]TableHistory, len(s.entries))
	for i, h := range s.entries {
		work[i] = h.Clone()
	}
	out, err := fn(work)
	if err != nil {
		return &StateError{Path: "memory", Err: err}
	}
	s.entries = out
	s.writes++
	return nil
}

var (
	_ HistoryStore = (*FileHistoryStore)(nil)
	_ HistoryStore = (*MemoryHistoryStore)(nil)
)
