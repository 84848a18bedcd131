package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileHistoryStore keeps every table history in one JSON file. Each mutation
// re-reads the file, applies the change in memory and rewrites the whole
// file. There is no locking: one process owns a history file at a time.
type FileHistoryStore struct {
	path string
}

// NewFileHistoryStore creates a store backed by path. The file is created on
// the first write.
func NewFileHistoryStore(path string) *FileHistoryStore {
	return &FileHistoryStore{path: path}
}

// Path returns the backing file path.
func (s *FileHistoryStore) Path() string { return s.path }

func (s *FileHistoryStore) All(_ context.Context) ([]TableHistory, error) {
	return s.load()
}

func (s *FileHistoryStore) Get(_ context.Context, table string) (*TableHistory, error) {
	all, err := s.load()
	if err != nil {
		return nil, err
	}
	i := indexOf(all, table)
	if i < 0 {
		return nil, ErrTableNotFound
	}
	h := all[i]
	return &h, nil
}

func (s *FileHistoryStore) Add(_ context.Context, h TableHistory, rec *MigrationRecord) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) {
		return addHistory(all, h, rec)
	})
}

func (s *FileHistoryStore) AddMigration(_ context.Context, table string, rec MigrationRecord) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) {
		return addMigration(all, table, rec)
	})
}

func (s *FileHistoryStore) UpdateMigration(_ context.Context, table string, rec MigrationRecord) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) {
		return updateMigration(all, table, rec)
	})
}

func (s *FileHistoryStore) ForgetMigration(_ context.Context, table, name string) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) {
		return forgetMigration(all, table, name)
	})
}

func (s *FileHistoryStore) Forget(_ context.Context, table string) error {
	return s.mutate(func(all []TableHistory) ([]TableHistory, error) {
		return forget(all, table)
	})
}

// load reads the whole collection. A missing or empty file is an empty
// collection; anything unparseable is a StateError.
func (s *FileHistoryStore) load() ([]TableHistory, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StateError{Path: s.path, Err: fmt.Errorf("read history: %w", err)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var all []TableHistory
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, &StateError{Path: s.path, Err: fmt.Errorf("%w: %v", ErrCorruptHistory, err)}
	}
	seen := make(map[string]bool, len(all))
	for i := range all {
		if err := all[i].Validate(); err != nil {
			return nil, &StateError{Path: s.path, Err: fmt.Errorf("%w: %v", ErrCorruptHistory, err)}
		}
		if seen[all[i].Table] {
			return nil, &StateError{Path: s.path, Err: fmt.Errorf("%w: table %s listed twice", ErrCorruptHistory, all[i].Table)}
		}
		seen[all[i].Table] = true
	}
	return all, nil
}

func (s *FileHistoryStore) mutate(fn func([]TableHistory) ([]TableHistory, error)) error {
	all, err := s.load()
	if err != nil {
		return err
	}
	all, err = fn(all)
	if err != nil {
		return &StateError{Path: s.path, Err: err}
	}
	return s.save(all)
}

// save writes to a temporary file in the same directory and renames it over
// the target, so readers never observe a half-written collection.
func (s *FileHistoryStore) save(all []TableHistory) error {
	if all == nil {
		all = []TableHistory{}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &StateError{Path: s.path, Err: fmt.Errorf("create history directory: %w", err)}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &StateError{Path: s.path, Err: fmt.Errorf("create temp file: %w", err)}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &StateError{Path: s.path, Err: fmt.Errorf("write history: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &StateError{Path: s.path, Err: fmt.Errorf("close history: %w", err)}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &StateError{Path: s.path, Err: fmt.Errorf("replace history: %w", err)}
	}
	return nil
}

// The collection edits below are shared by the file and memory stores.

func indexOf(all []TableHistory, table string) int {
	for i, h := range all {
		if h.Table == table {
			return i
		}
	}
	return -1
}

func addHistory(all []TableHistory, h TableHistory, rec *MigrationRecord) ([]TableHistory, error) {
	if indexOf(all, h.Table) >= 0 {
		return nil, fmt.Errorf("%w: table %s", ErrDuplicate, h.Table)
	}
	h = h.Clone()
	if rec != nil {
		h.Migrations = append(h.Migrations, rec.Clone())
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return append(all, h), nil
}

func addMigration(all []TableHistory, table string, rec MigrationRecord) ([]TableHistory, error) {
	i := indexOf(all, table)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	h := all[i].Clone()
	h.Migrations = append(h.Migrations, rec.Clone())
	if err := h.Validate(); err != nil {
		return nil, err
	}
	all[i] = h
	return all, nil
}

func updateMigration(all []TableHistory, table string, rec MigrationRecord) ([]TableHistory, error) {
	i := indexOf(all, table)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	j := all[i].Find(rec.Name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, table, rec.Name)
	}
	h := all[i].Clone()
	h.Migrations[j] = rec.Clone()
	if err := h.Validate(); err != nil {
		return nil, err
	}
	all[i] = h
	return all, nil
}

func forgetMigration(all []TableHistory, table, name string) ([]TableHistory, error) {
	i := indexOf(all, table)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	j := all[i].Find(name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, table, name)
	}
	// Later alters are diffs against the base, so it goes last or with the table.
	if j == 0 && len(all[i].Migrations) > 1 {
		return nil, fmt.Errorf("%w: %s/%s", ErrBaseRecord, table, name)
	}
	h := all[i].Clone()
	h.Migrations = append(h.Migrations[:j], h.Migrations[j+1:]...)
	all[i] = h
	return all, nil
}

func forget(all []TableHistory, table string) ([]TableHistory, error) {
	i := indexOf(all, table)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return append(all[:i], all[i+1:]...), nil
}
