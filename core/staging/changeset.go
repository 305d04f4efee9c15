// Package staging maintains ordered, coalesced row-level edits and applies
// them atomically.
//
// A change set holds at most one pending change per (table, row identifier)
// pair: repeated edits to the same row merge into the existing entry
// instead of appending. Changes leave the set in exactly two ways, both
// terminal: discarded, or applied inside a single transaction.
package staging

import "sort"

// ChangeKind classifies a pending change.
type ChangeKind string

const (
	Insert ChangeKind = "insert"
	Update ChangeKind = "update"
	Delete ChangeKind = "delete"
)

// PendingChange is one staged row-level edit. OldValues is the snapshot of
// the row before the first edit of the session (nil for inserts);
// NewValues holds the values to write (nil for deletes).
type PendingChange struct {
	Table     string         `json:"table"`
	Row       RowID          `json:"rowId"`
	Kind      ChangeKind     `json:"kind"`
	OldValues map[string]any `json:"oldValues,omitempty"`
	NewValues map[string]any `json:"newValues,omitempty"`
}

// ChangeSet is an ordered collection of pending changes, coalesced by
// (table, row identifier). The zero value is not usable; call NewChangeSet.
type ChangeSet struct {
	order   []string
	byKey   map[string]*PendingChange
	nextSeq int64
}

// NewChangeSet creates an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{byKey: make(map[string]*PendingChange)}
}

// NewRow allocates a synthetic row identifier for a staged insert.
func (cs *ChangeSet) NewRow() RowID {
	cs.nextSeq++
	return UncommittedRow(cs.nextSeq)
}

func changeKey(table string, row RowID) string {
	return table + "\x00" + row.key()
}

// Add stages a change, coalescing with any existing entry for the same
// (table, row) pair:
//
//   - an update merges its new values into an existing insert or update,
//     last write per column winning, while the old-value snapshot of the
//     first edit is preserved;
//   - a delete replaces any prior change for the row, keeping the earliest
//     old-value snapshot; a delete of a still-unapplied synthetic insert
//     removes the entry entirely;
//   - a second insert for the same row replaces the staged values.
func (cs *ChangeSet) Add(c PendingChange) {
	key := changeKey(c.Table, c.Row)
	existing, ok := cs.byKey[key]
	if !ok {
		stored := c
		stored.NewValues = copyValues(c.NewValues)
		stored.OldValues = copyValues(c.OldValues)
		cs.byKey[key] = &stored
		cs.order = append(cs.order, key)
		return
	}

	switch c.Kind {
	case Update:
		switch existing.Kind {
		case Insert, Update:
			if existing.NewValues == nil {
				existing.NewValues = make(map[string]any)
			}
			for col, val := range c.NewValues {
				existing.NewValues[col] = val
			}
		case Delete:
			// Editing after a staged delete re-stages the row as an update.
			existing.Kind = Update
			existing.NewValues = copyValues(c.NewValues)
		}
	case Delete:
		if existing.Kind == Insert && !c.Row.IsCommitted() {
			cs.remove(key)
			return
		}
		old := existing.OldValues
		if old == nil {
			old = copyValues(c.OldValues)
		}
		existing.Kind = Delete
		existing.OldValues = old
		existing.NewValues = nil
	case Insert:
		existing.Kind = Insert
		existing.OldValues = nil
		existing.NewValues = copyValues(c.NewValues)
	}
}

// Discard drops the pending change for one row, if any.
func (cs *ChangeSet) Discard(table string, row RowID) bool {
	key := changeKey(table, row)
	if _, ok := cs.byKey[key]; !ok {
		return false
	}
	cs.remove(key)
	return true
}

// DiscardAll empties the set.
func (cs *ChangeSet) DiscardAll() {
	cs.order = nil
	cs.byKey = make(map[string]*PendingChange)
}

// Get returns the pending change for one row.
func (cs *ChangeSet) Get(table string, row RowID) (PendingChange, bool) {
	c, ok := cs.byKey[changeKey(table, row)]
	if !ok {
		return PendingChange{}, false
	}
	return *c, true
}

// Changes returns the pending changes in staging order. The slice and its
// value maps are copies; mutating them does not affect the set.
func (cs *ChangeSet) Changes() []PendingChange {
	out := make([]PendingChange, 0, len(cs.order))
	for _, key := range cs.order {
		c := *cs.byKey[key]
		c.OldValues = copyValues(c.OldValues)
		c.NewValues = copyValues(c.NewValues)
		out = append(out, c)
	}
	return out
}

// Len returns the number of pending changes.
func (cs *ChangeSet) Len() int {
	return len(cs.order)
}

func (cs *ChangeSet) remove(key string) {
	delete(cs.byKey, key)
	for i, k := range cs.order {
		if k == key {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			break
		}
	}
}

func copyValues(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedColumns gives a deterministic column order for statement building.
func sortedColumns(values map[string]any) []string {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
