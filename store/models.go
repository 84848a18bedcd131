package store

import (
	"fmt"

	"github.com/GoCodeAlone/schemaforge/schema"
)

// MigrationRecord is one generated migration plus the spec it was built from.
type MigrationRecord struct {
	Name      string      `json:"name"`
	ClassName string      `json:"class_name"`
	Path      string      `json:"path"`
	Spec      schema.Spec `json:"spec"`
	// IsCreate marks a whole-table creation; otherwise the record alters.
	IsCreate bool `json:"is_create"`
	// IsVirtual marks a record accepted without confirmed execution, used
	// for tables that existed before they were tracked.
	IsVirtual   bool   `json:"is_virtual"`
	Timestamps  bool   `json:"timestamps"`
	SoftDeletes bool   `json:"soft_deletes"`
	Checksum    string `json:"checksum,omitempty"`
}

// Clone returns a deep copy of r.
func (r MigrationRecord) Clone() MigrationRecord {
	out := r
	out.Spec = r.Spec.Clone()
	return out
}

// TableHistory is the ordered migration lineage of one table.
type TableHistory struct {
	Table      string            `json:"table"`
	Model      string            `json:"model,omitempty"`
	Source     string            `json:"source,omitempty"`
	Migrations []MigrationRecord `json:"migrations"`
}

// Clone returns a deep copy of h.
func (h TableHistory) Clone() TableHistory {
	out := h
	out.Migrations = make([]MigrationRecord, len(h.Migrations))
	for i, r := range h.Migrations {
		out.Migrations[i] = r.Clone()
	}
	return out
}

// Latest returns the most recent record.
func (h *TableHistory) Latest() (MigrationRecord, bool) {
	if len(h.Migrations) == 0 {
		return MigrationRecord{}, false
	}
	return h.Migrations[len(h.Migrations)-1], true
}

// Find returns the index of the record named name, or -1.
func (h *TableHistory) Find(name string) int {
	for i, r := range h.Migrations {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants of a history: a table name,
// unique record names, and at most one create record which must come first.
func (h *TableHistory) Validate() error {
	if h.Table == "" {
		return fmt.Errorf("history entry without table name")
	}
	seen := make(map[string]bool, len(h.Migrations))
	for i, r := range h.Migrations {
		if r.Name == "" {
			return fmt.Errorf("table %s: record %d has no name", h.Table, i)
		}
		if seen[r.Name] {
			return fmt.Errorf("table %s: %w: record %s", h.Table, ErrDuplicate, r.Name)
		}
		seen[r.Name] = true
		if r.IsCreate && i != 0 {
			return fmt.Errorf("table %s: create record %s is not the first record", h.Table, r.Name)
		}
	}
	return nil
}
