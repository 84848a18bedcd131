package migration

import "github.com/GoCodeAlone/schemaforge/schema"

// FieldPair links the previous and current definition of one column.
type FieldPair struct {
	From schema.Field `json:"from"`
	To   schema.Field `json:"to"`
}

// Delta is the structural difference between two snapshots of one table.
type Delta struct {
	Added    []schema.Field `json:"added,omitempty"`
	Removed  []schema.Field `json:"removed,omitempty"`
	Modified []FieldPair    `json:"modified,omitempty"`
	// Renamed pairs may also differ in definition; the synthesizer then
	// emits a change after the rename.
	Renamed []FieldPair `json:"renamed,omitempty"`

	AddedIndexes   []schema.Index `json:"added_indexes,omitempty"`
	RemovedIndexes []schema.Index `json:"removed_indexes,omitempty"`

	AddTimestamps  bool `json:"add_timestamps,omitempty"`
	DropTimestamps bool `json:"drop_timestamps,omitempty"`
	AddSoftDelete  bool `json:"add_soft_delete,omitempty"`
	DropSoftDelete bool `json:"drop_soft_delete,omitempty"`
}

// HasChange reports whether d describes any change at all.
func (d Delta) HasChange() bool {
	return len(d.Added) > 0 ||
		len(d.Removed) > 0 ||
		len(d.Modified) > 0 ||
		len(d.Renamed) > 0 ||
		len(d.AddedIndexes) > 0 ||
		len(d.RemovedIndexes) > 0 ||
		d.AddTimestamps || d.DropTimestamps ||
		d.AddSoftDelete || d.DropSoftDelete
}

// Diff compares two snapshots of the same table.
//
// Fields match by name. A renamed_from hint on a current field turns a
// removed+added pair into a rename, but only when the old name exists in
// previous, is gone from current, and the new name is not in previous.
// Indexes match by type and column set, so a changed index is a remove+add.
// Results follow current declaration order, and previous order for removals.
func Diff(previous, current *schema.Snapshot) Delta {
	var d Delta

	prevFields := previous.Fields()
	curFields := current.Fields()

	prevByName := make(map[string]schema.Field, len(prevFields))
	for _, f := range prevFields {
		prevByName[f.Name] = f
	}
	curByName := make(map[string]bool, len(curFields))
	for _, f := range curFields {
		curByName[f.Name] = true
	}

	claimed := make(map[string]bool)
	for _, f := range curFields {
		if old, ok := renameSource(f, prevByName, curByName, claimed); ok {
			claimed[old.Name] = true
			d.Renamed = append(d.Renamed, FieldPair{From: old, To: f})
			continue
		}
		prev, ok := prevByName[f.Name]
		switch {
		case !ok:
			d.Added = append(d.Added, f)
		case !prev.SameDefinition(f):
			d.Modified = append(d.Modified, FieldPair{From: prev, To: f})
		}
	}
	for _, f := range prevFields {
		if !curByName[f.Name] && !claimed[f.Name] {
			d.Removed = append(d.Removed, f)
		}
	}

	prevIdx := indexKeys(previous.Indexes())
	curIdx := indexKeys(current.Indexes())
	for _, idx := range current.Indexes() {
		if _, ok := prevIdx[idx.Key()]; !ok {
			d.AddedIndexes = append(d.AddedIndexes, idx)
		}
	}
	for _, idx := range previous.Indexes() {
		if _, ok := curIdx[idx.Key()]; !ok {
			d.RemovedIndexes = append(d.RemovedIndexes, idx)
		}
	}

	d.AddTimestamps = !previous.UsesTimestamps() && current.UsesTimestamps()
	d.DropTimestamps = previous.UsesTimestamps() && !current.UsesTimestamps()
	d.AddSoftDelete = !previous.UsesSoftDelete() && current.UsesSoftDelete()
	d.DropSoftDelete = previous.UsesSoftDelete() && !current.UsesSoftDelete()
	return d
}

func renameSource(f schema.Field, prev map[string]schema.Field, cur, claimed map[string]bool) (schema.Field, bool) {
	from := f.RenamedFrom
	if from == "" || from == f.Name || claimed[from] || cur[from] {
		return schema.Field{}, false
	}
	if _, exists := prev[f.Name]; exists {
		return schema.Field{}, false
	}
	old, ok := prev[from]
	return old, ok
}

func indexKeys(indexes []schema.Index) map[string]schema.Index {
	out := make(map[string]schema.Index, len(indexes))
	for _, idx := range indexes {
		out[idx.Key()] = idx
	}
	return out
}
