package schema

import (
	"fmt"
	"strings"
)

// Validate checks s for fatal problems and returns the non-fatal warnings.
// All fatal problems are reported together as ValidationErrors.
func Validate(s Spec) ([]Warning, error) {
	var (
		errs     ValidationErrors
		warnings []Warning
	)
	fail := func(path, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Table:   s.Table,
			Path:    path,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if strings.TrimSpace(s.Table) == "" {
		fail("table", "table name is required")
	}
	if len(s.Fields) == 0 {
		fail("fields", "at least one field is required")
	}

	columns := make(map[string]bool, len(s.Fields))
	primaries := 0
	for i, f := range s.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			fail(path+".name", "field name is required")
			continue
		}
		path = fmt.Sprintf("fields[%d](%s)", i, f.Name)
		if columns[f.Name] {
			fail(path, "duplicate field name %q", f.Name)
		}
		columns[f.Name] = true

		if !f.Type.Valid() {
			fail(path+".type", "unknown type %q", f.Type)
			continue
		}
		if f.Type == TypeEnum && len(usableOptions(f.Options)) == 0 {
			fail(path+".options", "enum field has no usable option values")
		}
		if f.Type != TypeEnum && len(f.Options) > 0 {
			fail(path+".options", "options are only valid for enum fields")
		}
		if f.Scale > 0 && f.Precision > 0 && f.Scale > f.Precision {
			fail(path+".scale", "scale %d exceeds precision %d", f.Scale, f.Precision)
		}
		if f.IsPrimary() {
			primaries++
		}
	}
	if primaries > 1 {
		fail("fields", "%d primary key fields declared, at most one is allowed", primaries)
	}

	seenIdx := make(map[string]int, len(s.Indexes))
	for i, idx := range s.Indexes {
		path := fmt.Sprintf("indexes[%d]", i)
		if first, dup := seenIdx[idx.Key()]; dup {
			fail(path, "duplicate index %s, already declared as indexes[%d]", idx.Key(), first)
		} else {
			seenIdx[idx.Key()] = i
		}
		if !idx.Type.Valid() {
			fail(path+".type", "unknown index type %q", idx.Type)
		}
		if len(idx.Columns) == 0 {
			fail(path+".columns", "index has no columns")
		}
		for _, c := range idx.Columns {
			if !columns[c] {
				fail(path+".columns", "index references unknown column %q", c)
			}
		}
	}

	for i, fk := range s.ForeignKeys {
		path := fmt.Sprintf("foreign_keys[%d]", i)
		if !columns[fk.Column] {
			fail(path+".column", "foreign key references unknown column %q", fk.Column)
		}
		if fk.References == "" {
			fail(path+".references", "referenced column is required")
		}
		if fk.On == "" {
			fail(path+".on", "referenced table is required")
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	if primaries == 0 {
		warnings = append(warnings, Warning{Table: s.Table, Message: "no primary key field declared"})
	}
	return warnings, nil
}

func usableOptions(opts []string) []string {
	var out []string
	for _, o := range opts {
		if strings.TrimSpace(o) != "" {
			out = append(out, o)
		}
	}
	return out
}
