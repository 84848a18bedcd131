package migration

import (
	"fmt"

	"github.com/GoCodeAlone/schemaforge/schema"
)

// BuildCreate lists the operations that create snap's table from nothing:
// engine directive, primary key, the remaining fields in declaration order,
// timestamps, soft delete, indexes, then foreign keys.
func BuildCreate(snap *schema.Snapshot) []Operation {
	var ops []Operation
	if e := snap.Engine(); e != "" {
		ops = append(ops, Operation{Kind: OpEngine, Engine: e})
	}
	if pk, ok := snap.PrimaryKey(); ok {
		ops = append(ops, Operation{Kind: OpPrimaryKey, Column: pk.Name, Field: &pk})
	}
	for _, f := range snap.Fields() {
		if f.IsPrimary() {
			continue
		}
		ops = append(ops, Operation{Kind: OpAddColumn, Column: f.Name, Field: &f})
	}
	if snap.UsesTimestamps() {
		ops = append(ops, Operation{Kind: OpAddTimestamps})
	}
	if snap.UsesSoftDelete() {
		ops = append(ops, Operation{Kind: OpAddSoftDelete})
	}
	for _, idx := range snap.Indexes() {
		ops = append(ops, indexOp(OpAddIndex, snap.Table(), idx))
	}
	for _, fk := range snap.ForeignKeys() {
		ops = append(ops, Operation{Kind: OpForeignKey, Column: fk.Column, ForeignKey: &fk})
	}
	return ops
}

// BuildAlter turns d into apply operations and their mirrored revert list.
//
// Apply order: index drops, renames (each followed by a change when the
// definition moved too), additions, changes, column drops, index additions,
// then timestamp and soft-delete toggles. The revert list is every apply
// operation inverted, in reverse order.
//
// A column whose type cannot be changed in place fails the whole build with
// schema.ErrUnsupportedTypeChange.
func BuildAlter(table string, d Delta) (apply, revert []Operation, err error) {
	var invalid schema.ValidationErrors

	for _, idx := range d.RemovedIndexes {
		apply = append(apply, indexOp(OpDropIndex, table, idx))
	}

	for _, p := range d.Renamed {
		apply = append(apply, Operation{Kind: OpRenameColumn, Column: p.From.Name, To: p.To.Name})
		if p.From.SameDefinition(p.To) {
			continue
		}
		from := p.From.Clone()
		from.Name = p.To.Name
		from.RenamedFrom = ""
		if verr := checkTypeChange(table, from, p.To); verr != nil {
			invalid = append(invalid, verr)
			continue
		}
		apply = append(apply, changeOp(from, p.To))
	}

	for _, f := range d.Added {
		apply = append(apply, Operation{Kind: OpAddColumn, Column: f.Name, Field: &f})
	}

	for _, p := range d.Modified {
		if verr := checkTypeChange(table, p.From, p.To); verr != nil {
			invalid = append(invalid, verr)
			continue
		}
		apply = append(apply, changeOp(p.From, p.To))
	}

	for _, f := range d.Removed {
		apply = append(apply, Operation{Kind: OpDropColumn, Column: f.Name, Field: &f})
	}

	for _, idx := range d.AddedIndexes {
		apply = append(apply, indexOp(OpAddIndex, table, idx))
	}

	switch {
	case d.AddTimestamps:
		apply = append(apply, Operation{Kind: OpAddTimestamps})
	case d.DropTimestamps:
		apply = append(apply, Operation{Kind: OpDropTimestamps})
	}
	switch {
	case d.AddSoftDelete:
		apply = append(apply, Operation{Kind: OpAddSoftDelete})
	case d.DropSoftDelete:
		apply = append(apply, Operation{Kind: OpDropSoftDelete})
	}

	if len(invalid) > 0 {
		return nil, nil, invalid
	}

	revert, err = InvertAll(apply)
	if err != nil {
		return nil, nil, fmt.Errorf("build revert operations: %w", err)
	}
	return apply, revert, nil
}

func changeOp(from, to schema.Field) Operation {
	from, to = from.Clone(), to.Clone()
	return Operation{Kind: OpChangeColumn, Column: to.Name, Field: &to, Previous: &from}
}

func indexOp(kind OpKind, table string, idx schema.Index) Operation {
	return Operation{Kind: kind, Index: &idx, IndexName: idx.ResolvedName(table)}
}

func checkTypeChange(table string, from, to schema.Field) *schema.ValidationError {
	if schema.CanChange(from.Type, to.Type) {
		return nil
	}
	return &schema.ValidationError{
		Table:   table,
		Path:    "fields." + to.Name,
		Message: fmt.Sprintf("cannot change column type from %s to %s", from.Type, to.Type),
		Err:     schema.ErrUnsupportedTypeChange,
	}
}
