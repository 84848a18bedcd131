package schema

import (
	"slices"
	"sort"
	"strings"
)

// Spec is the declarative description of one table as written by the user
// and as embedded in migration history records.
type Spec struct {
	Table       string       `json:"table" yaml:"table"`
	Model       string       `json:"model,omitempty" yaml:"model,omitempty"`
	Engine      string       `json:"engine,omitempty" yaml:"engine,omitempty"`
	Timestamps  bool         `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
	SoftDeletes bool         `json:"soft_deletes,omitempty" yaml:"soft_deletes,omitempty"`
	Fields      []Field      `json:"fields" yaml:"fields"`
	Indexes     []Index      `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
}

// Clone returns a deep copy of s.
func (s Spec) Clone() Spec {
	out := s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		out.Fields[i] = f.Clone()
	}
	out.Indexes = make([]Index, len(s.Indexes))
	for i, idx := range s.Indexes {
		out.Indexes[i] = idx.Clone()
	}
	out.ForeignKeys = slices.Clone(s.ForeignKeys)
	return out
}

// TypeParams carries the extra arguments some data types take.
type TypeParams struct {
	Length    int      `json:"length,omitempty" yaml:"length,omitempty"`
	Precision int      `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale     int      `json:"scale,omitempty" yaml:"scale,omitempty"`
	Options   []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Field describes one column.
type Field struct {
	Name     string   `json:"name" yaml:"name"`
	Type     DataType `json:"type" yaml:"type"`
	Primary  bool     `json:"primary,omitempty" yaml:"primary,omitempty"`
	Nullable bool     `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Unsigned bool     `json:"unsigned,omitempty" yaml:"unsigned,omitempty"`
	Unique   bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Indexed  bool     `json:"index,omitempty" yaml:"index,omitempty"`
	Default  *string  `json:"default,omitempty" yaml:"default,omitempty"`
	Comment  string   `json:"comment,omitempty" yaml:"comment,omitempty"`
	// RenamedFrom links this field to a column of the previous snapshot.
	RenamedFrom string `json:"renamed_from,omitempty" yaml:"renamed_from,omitempty"`

	TypeParams `yaml:",inline"`
}

// Clone returns a deep copy of f.
func (f Field) Clone() Field {
	out := f
	out.Options = slices.Clone(f.Options)
	if f.Default != nil {
		d := *f.Default
		out.Default = &d
	}
	return out
}

// IsPrimary reports whether f is the table's primary key column.
func (f Field) IsPrimary() bool {
	return f.Primary || f.Type.AutoIncrement()
}

// SameDefinition reports whether f and o describe the same column
// definition, ignoring the column name and any rename hint.
func (f Field) SameDefinition(o Field) bool {
	if f.Type != o.Type ||
		f.Primary != o.Primary ||
		f.Nullable != o.Nullable ||
		f.Unsigned != o.Unsigned ||
		f.Unique != o.Unique ||
		f.Indexed != o.Indexed ||
		f.Comment != o.Comment ||
		f.Length != o.Length ||
		f.Precision != o.Precision ||
		f.Scale != o.Scale {
		return false
	}
	if (f.Default == nil) != (o.Default == nil) {
		return false
	}
	if f.Default != nil && *f.Default != *o.Default {
		return false
	}
	return slices.Equal(f.Options, o.Options)
}

// Index describes a table index.
type Index struct {
	Type    IndexType `json:"type" yaml:"type"`
	Columns []string  `json:"columns" yaml:"columns"`
	Name    string    `json:"name,omitempty" yaml:"name,omitempty"`
}

// Clone returns a deep copy of i.
func (i Index) Clone() Index {
	out := i
	out.Columns = slices.Clone(i.Columns)
	return out
}

// Key is the diff identity of the index: its type plus its column set.
func (i Index) Key() string {
	cols := slices.Clone(i.Columns)
	sort.Strings(cols)
	return string(i.Type) + ":" + strings.Join(cols, ",")
}

// ResolvedName returns the explicit index name, or the conventional
// <table>_<columns>_<type> name when none was given.
func (i Index) ResolvedName(table string) string {
	if i.Name != "" {
		return i.Name
	}
	parts := append([]string{table}, i.Columns...)
	parts = append(parts, string(i.Type))
	name := strings.ToLower(strings.Join(parts, "_"))
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

// ForeignKey is a referential constraint on one column. Constraints are
// append-only: they are emitted on table creation and never diffed.
type ForeignKey struct {
	Column     string `json:"column" yaml:"column"`
	References string `json:"references" yaml:"references"`
	On         string `json:"on" yaml:"on"`
	OnDelete   string `json:"on_delete,omitempty" yaml:"on_delete,omitempty"`
	OnUpdate   string `json:"on_update,omitempty" yaml:"on_update,omitempty"`
}
