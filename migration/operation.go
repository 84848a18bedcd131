package migration

import (
	"errors"
	"fmt"

	"github.com/GoCodeAlone/schemaforge/schema"
)

// OpKind identifies one table-alteration instruction.
type OpKind string

const (
	OpEngine         OpKind = "engine"
	OpPrimaryKey     OpKind = "primaryKey"
	OpAddColumn      OpKind = "addColumn"
	OpDropColumn     OpKind = "dropColumn"
	OpRenameColumn   OpKind = "renameColumn"
	OpChangeColumn   OpKind = "changeColumn"
	OpAddIndex       OpKind = "addIndex"
	OpDropIndex      OpKind = "dropIndex"
	OpAddTimestamps  OpKind = "addTimestamps"
	OpDropTimestamps OpKind = "dropTimestamps"
	OpAddSoftDelete  OpKind = "addSoftDelete"
	OpDropSoftDelete OpKind = "dropSoftDelete"
	OpForeignKey     OpKind = "foreignKey"
)

// ErrNotInvertible is returned by Invert for create-only operations.
var ErrNotInvertible = errors.New("operation has no inverse")

// Operation is one instruction of a migration, carrying everything a
// renderer needs to write it out.
//
// Column-level operations name their column in Column. Field holds the
// definition the operation produces (or, for dropColumn, the definition
// being dropped so the inverse can restore it). Previous is only set on
// changeColumn and holds the definition being replaced.
type Operation struct {
	Kind       OpKind             `json:"op"`
	Column     string             `json:"column,omitempty"`
	To         string             `json:"to,omitempty"`
	Field      *schema.Field      `json:"field,omitempty"`
	Previous   *schema.Field      `json:"previous,omitempty"`
	Index      *schema.Index      `json:"index,omitempty"`
	IndexName  string             `json:"index_name,omitempty"`
	ForeignKey *schema.ForeignKey `json:"foreign_key,omitempty"`
	Engine     string             `json:"engine,omitempty"`
}

func (op Operation) String() string {
	switch op.Kind {
	case OpRenameColumn:
		return fmt.Sprintf("%s(%s -> %s)", op.Kind, op.Column, op.To)
	case OpAddIndex, OpDropIndex:
		return fmt.Sprintf("%s(%s)", op.Kind, op.IndexName)
	case OpEngine:
		return fmt.Sprintf("%s(%s)", op.Kind, op.Engine)
	case OpForeignKey:
		if op.ForeignKey != nil {
			return fmt.Sprintf("%s(%s -> %s.%s)", op.Kind, op.ForeignKey.Column, op.ForeignKey.On, op.ForeignKey.References)
		}
		return string(op.Kind)
	case OpAddTimestamps, OpDropTimestamps, OpAddSoftDelete, OpDropSoftDelete:
		return string(op.Kind)
	default:
		return fmt.Sprintf("%s(%s)", op.Kind, op.Column)
	}
}

var inverseKinds = map[OpKind]OpKind{
	OpAddColumn:      OpDropColumn,
	OpDropColumn:     OpAddColumn,
	OpAddIndex:       OpDropIndex,
	OpDropIndex:      OpAddIndex,
	OpAddTimestamps:  OpDropTimestamps,
	OpDropTimestamps: OpAddTimestamps,
	OpAddSoftDelete:  OpDropSoftDelete,
	OpDropSoftDelete: OpAddSoftDelete,
	OpRenameColumn:   OpRenameColumn,
	OpChangeColumn:   OpChangeColumn,
}

// Invert returns the operation that undoes op: add and drop swap, a rename
// runs backwards, and a change restores the previous definition.
func Invert(op Operation) (Operation, error) {
	kind, ok := inverseKinds[op.Kind]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", ErrNotInvertible, op.Kind)
	}
	inv := op.clone()
	inv.Kind = kind
	switch op.Kind {
	case OpRenameColumn:
		inv.Column, inv.To = op.To, op.Column
	case OpChangeColumn:
		inv.Field, inv.Previous = inv.Previous, inv.Field
	}
	return inv, nil
}

// InvertAll inverts ops and reverses their order.
func InvertAll(ops []Operation) ([]Operation, error) {
	out := make([]Operation, len(ops))
	for i, op := range ops {
		inv, err := Invert(op)
		if err != nil {
			return nil, err
		}
		out[len(ops)-1-i] = inv
	}
	return out, nil
}

func (op Operation) clone() Operation {
	out := op
	if op.Field != nil {
		f := op.Field.Clone()
		out.Field = &f
	}
	if op.Previous != nil {
		f := op.Previous.Clone()
		out.Previous = &f
	}
	if op.Index != nil {
		idx := op.Index.Clone()
		out.Index = &idx
	}
	if op.ForeignKey != nil {
		fk := *op.ForeignKey
		out.ForeignKey = &fk
	}
	return out
}
