package migration

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/GoCodeAlone/schemaforge/schema"
)

func strPtr(s string) *string { return &s }

func field(name string, typ schema.DataType) schema.Field {
	return schema.Field{Name: name, Type: typ}
}

func snapshot(t *testing.T, spec schema.Spec) *schema.Snapshot {
	t.Helper()
	snap, _, err := schema.NewSnapshot(spec)
	if err != nil {
		t.Fatalf("NewSnapshot(%s): %v", spec.Table, err)
	}
	return snap
}

// postsSpec is the posts table of the planner scenarios.
func postsSpec(extra ...schema.Field) schema.Spec {
	fields := []schema.Field{
		{Name: "id", Type: schema.TypeIncrements},
		{Name: "title", Type: schema.TypeString},
		{Name: "body", Type: schema.TypeText},
	}
	return schema.Spec{Table: "posts", Model: "Post", Fields: append(fields, extra...)}
}

var (
	textTypes    = []schema.DataType{schema.TypeString, schema.TypeText, schema.TypeChar, schema.TypeLongText}
	integerTypes = []schema.DataType{schema.TypeInteger, schema.TypeBigInteger, schema.TypeSmallInteger}
	fieldPool    = []string{"a", "b", "c", "d", "e", "f", "g", "h"}
)

// randomSpec builds a valid spec of the "items" table. Every column name
// keeps one storage family across calls, so any two generated specs can be
// altered into each other.
func randomSpec(r *rand.Rand) schema.Spec {
	spec := schema.Spec{
		Table:       "items",
		Timestamps:  r.IntN(2) == 0,
		SoftDeletes: r.IntN(2) == 0,
	}
	for i, name := range fieldPool {
		if r.IntN(10) < 4 {
			continue
		}
		types := textTypes
		if i%2 == 1 {
			types = integerTypes
		}
		f := schema.Field{
			Name:     name,
			Type:     types[r.IntN(len(types))],
			Nullable: r.IntN(2) == 0,
			Unique:   r.IntN(4) == 0,
			Indexed:  r.IntN(4) == 0,
		}
		if r.IntN(3) == 0 {
			f.Default = strPtr(fmt.Sprint(r.IntN(3)))
		}
		if r.IntN(4) == 0 {
			f.Comment = "c" + fmt.Sprint(r.IntN(2))
		}
		spec.Fields = append(spec.Fields, f)
	}
	if len(spec.Fields) == 0 {
		spec.Fields = append(spec.Fields, schema.Field{Name: "a", Type: schema.TypeString})
	}
	seen := make(map[string]bool)
	for range r.IntN(3) {
		cols := []string{spec.Fields[r.IntN(len(spec.Fields))].Name}
		if len(spec.Fields) > 1 && r.IntN(2) == 0 {
			other := spec.Fields[r.IntN(len(spec.Fields))].Name
			if other != cols[0] {
				cols = append(cols, other)
			}
		}
		typ := schema.IndexPlain
		if r.IntN(2) == 0 {
			typ = schema.IndexUnique
		}
		idx := schema.Index{Type: typ, Columns: cols}
		if seen[idx.Key()] {
			continue
		}
		seen[idx.Key()] = true
		spec.Indexes = append(spec.Indexes, idx)
	}
	return spec
}

// corpus returns n seeded snapshot pairs.
func corpus(t *testing.T, n int) [][2]*schema.Snapshot {
	t.Helper()
	r := rand.New(rand.NewPCG(42, 7))
	out := make([][2]*schema.Snapshot, n)
	for i := range out {
		out[i] = [2]*schema.Snapshot{snapshot(t, randomSpec(r)), snapshot(t, randomSpec(r))}
	}
	return out
}

func fieldNames(fields []schema.Field) map[string]bool {
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		out[f.Name] = true
	}
	return out
}

func kinds(ops []Operation) []OpKind {
	out := make([]OpKind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}
