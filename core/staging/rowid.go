package staging

import (
	"encoding/json"
	"fmt"
)

// RowID identifies the row a pending change targets. It is a tagged union:
// a committed row is addressed by its physical rowid (the storage-engine
// identifier, not the declared primary key, so primary-key edits still
// target the right row), while a not-yet-persisted insert carries a
// synthetic sequence number that exists only inside its change set.
type RowID struct {
	committed bool
	id        int64
}

// CommittedRow addresses an existing row by physical rowid.
func CommittedRow(rowid int64) RowID {
	return RowID{committed: true, id: rowid}
}

// UncommittedRow addresses a staged insert by synthetic sequence number.
func UncommittedRow(seq int64) RowID {
	return RowID{id: seq}
}

// IsCommitted reports whether the row exists in the database.
func (r RowID) IsCommitted() bool {
	return r.committed
}

// Rowid returns the physical rowid; ok is false for uncommitted rows.
func (r RowID) Rowid() (rowid int64, ok bool) {
	return r.id, r.committed
}

func (r RowID) String() string {
	if r.committed {
		return fmt.Sprintf("rowid:%d", r.id)
	}
	return fmt.Sprintf("new:%d", r.id)
}

// key gives the map key for coalescing; the two namespaces never collide.
func (r RowID) key() string {
	if r.committed {
		return fmt.Sprintf("c%d", r.id)
	}
	return fmt.Sprintf("u%d", r.id)
}

type rowIDJSON struct {
	Kind string `json:"kind"` // committed or uncommitted
	ID   int64  `json:"id"`
}

// MarshalJSON encodes the union with an explicit kind tag rather than
// overloading the sign of the integer.
func (r RowID) MarshalJSON() ([]byte, error) {
	kind := "uncommitted"
	if r.committed {
		kind = "committed"
	}
	return json.Marshal(rowIDJSON{Kind: kind, ID: r.id})
}

func (r *RowID) UnmarshalJSON(data []byte) error {
	var raw rowIDJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case "committed":
		*r = CommittedRow(raw.ID)
	case "uncommitted":
		*r = UncommittedRow(raw.ID)
	default:
		return fmt.Errorf("unknown row identifier kind %q", raw.Kind)
	}
	return nil
}
