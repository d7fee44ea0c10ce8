package configtree

import "sort"

// ChangeKind classifies a single field change.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// FieldChange is one path-addressed difference between two trees.
type FieldChange struct {
	Path     string     `json:"path"`
	OldValue any        `json:"old_value,omitempty"`
	NewValue any        `json:"new_value,omitempty"`
	Kind     ChangeKind `json:"kind"`
}

// Diff computes the structural differences between two values. It is a
// total function: any pair of inputs yields a (possibly empty) change
// list. Maps are walked by key union, arrays are compared wholesale, and
// a container-vs-leaf type change is reported as modified at that path
// without recursing further. Output is ordered by key within each level.
func Diff(before, after any) []FieldChange {
	return diffValue(Normalize(before), Normalize(after), "")
}

// DiffTrees diffs two document roots.
func DiffTrees(before, after Tree) []FieldChange {
	return Diff(before, after)
}

func diffValue(oldVal, newVal any, prefix string) []FieldChange {
	var changes []FieldChange

	oldMap, oldIsMap := oldVal.(Tree)
	newMap, newIsMap := newVal.(Tree)

	switch {
	case oldIsMap && newIsMap:
		for _, key := range sortedKeys(oldMap) {
			if _, ok := newMap[key]; !ok {
				changes = append(changes, FieldChange{
					Path:     JoinPath(prefix, key),
					OldValue: oldMap[key],
					Kind:     ChangeDeleted,
				})
			}
		}
		for _, key := range sortedKeys(newMap) {
			childPath := JoinPath(prefix, key)
			oldChild, ok := oldMap[key]
			if !ok {
				changes = append(changes, FieldChange{
					Path:     childPath,
					NewValue: newMap[key],
					Kind:     ChangeAdded,
				})
				continue
			}
			changes = append(changes, diffValue(oldChild, newMap[key], childPath)...)
		}

	default:
		oldArr, oldIsArr := oldVal.([]any)
		newArr, newIsArr := newVal.([]any)
		if oldIsArr && newIsArr {
			// Arrays change as a unit; element-level diffs are not useful
			// for the config shapes we manage.
			if !Equal(oldArr, newArr) {
				changes = append(changes, FieldChange{
					Path:     prefix,
					OldValue: oldVal,
					NewValue: newVal,
					Kind:     ChangeModified,
				})
			}
			return changes
		}

		if !Equal(oldVal, newVal) {
			changes = append(changes, FieldChange{
				Path:     prefix,
				OldValue: oldVal,
				NewValue: newVal,
				Kind:     ChangeModified,
			})
		}
	}

	return changes
}

func sortedKeys(t Tree) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
