package schema

import "slices"

// Snapshot is one immutable version of a table's desired structure.
// Every accessor returns copies, so a Snapshot never changes once built.
type Snapshot struct {
	spec Spec
}

// NewSnapshot validates s and freezes a private copy of it.
// A spec without a primary key still yields a Snapshot plus a warning.
func NewSnapshot(s Spec) (*Snapshot, []Warning, error) {
	warnings, err := Validate(s)
	if err != nil {
		return nil, nil, err
	}
	return &Snapshot{spec: s.Clone()}, warnings, nil
}

// MustSnapshot is NewSnapshot for specs known to be valid. It panics on
// validation errors.
func MustSnapshot(s Spec) *Snapshot {
	snap, _, err := NewSnapshot(s)
	if err != nil {
		panic(err)
	}
	return snap
}

// Table returns the table name.
func (s *Snapshot) Table() string { return s.spec.Table }

// Model returns the originating model name, if any.
func (s *Snapshot) Model() string { return s.spec.Model }

// Engine returns the storage engine directive, if any.
func (s *Snapshot) Engine() string { return s.spec.Engine }

// UsesTimestamps reports whether created/updated timestamp columns are managed.
func (s *Snapshot) UsesTimestamps() bool { return s.spec.Timestamps }

// UsesSoftDelete reports whether a soft-delete column is managed.
func (s *Snapshot) UsesSoftDelete() bool { return s.spec.SoftDeletes }

// Fields returns the fields in declaration order.
func (s *Snapshot) Fields() []Field {
	out := make([]Field, len(s.spec.Fields))
	for i, f := range s.spec.Fields {
		out[i] = f.Clone()
	}
	return out
}

// Field looks up a field by name.
func (s *Snapshot) Field(name string) (Field, bool) {
	for _, f := range s.spec.Fields {
		if f.Name == name {
			return f.Clone(), true
		}
	}
	return Field{}, false
}

// PrimaryKey returns the primary key field, if one is declared.
func (s *Snapshot) PrimaryKey() (Field, bool) {
	for _, f := range s.spec.Fields {
		if f.IsPrimary() {
			return f.Clone(), true
		}
	}
	return Field{}, false
}

// Indexes returns the declared indexes.
func (s *Snapshot) Indexes() []Index {
	out := make([]Index, len(s.spec.Indexes))
	for i, idx := range s.spec.Indexes {
		out[i] = idx.Clone()
	}
	return out
}

// ForeignKeys returns the declared foreign key constraints.
func (s *Snapshot) ForeignKeys() []ForeignKey {
	return slices.Clone(s.spec.ForeignKeys)
}

// Spec returns a copy of the document the snapshot was built from.
func (s *Snapshot) Spec() Spec {
	return s.spec.Clone()
}
