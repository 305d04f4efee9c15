// Package diff compares two schema snapshots and reports structural
// differences down to the field level.
//
// Comparison is pure: it reads two in-memory snapshots and produces a
// report, touching no database. Objects are matched by name within their
// schema; nested objects (columns, indexes, foreign keys, triggers) are
// matched by their natural key and compared field by field.
package diff

import (
	"time"

	"github.com/sqlitescope/sqlitescope/core/schema"
)

// DiffType classifies an object in a comparison report.
type DiffType string

const (
	DiffAdded     DiffType = "added"
	DiffRemoved   DiffType = "removed"
	DiffModified  DiffType = "modified"
	DiffUnchanged DiffType = "unchanged"
)

// FieldChange records one field that differs between source and target.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// ColumnDiff is one column's fate. Changes is keyed by field name
// (type, nullable, default, primaryKey) and present only when modified.
type ColumnDiff struct {
	Name    string                 `json:"name"`
	Status  DiffType               `json:"status"`
	Changes map[string]FieldChange `json:"changes,omitempty"`
}

// IndexDiff is one index's fate, matched by index name.
type IndexDiff struct {
	Name    string                 `json:"name"`
	Status  DiffType               `json:"status"`
	Changes map[string]FieldChange `json:"changes,omitempty"`
}

// ForeignKeyDiff is one foreign key's fate, matched by local column.
type ForeignKeyDiff struct {
	Column  string                 `json:"column"`
	Status  DiffType               `json:"status"`
	Changes map[string]FieldChange `json:"changes,omitempty"`
}

// TriggerDiff is one trigger's fate, matched by trigger name.
type TriggerDiff struct {
	Name    string                 `json:"name"`
	Status  DiffType               `json:"status"`
	Changes map[string]FieldChange `json:"changes,omitempty"`
}

// PrimaryKeyDiff reports a primary-key change. Column order within the
// key is not compared; only membership counts.
type PrimaryKeyDiff struct {
	From []string `json:"from"`
	To   []string `json:"to"`
}

// TableDiff is one table's (or view's) fate. Source and Target carry the
// full definitions from each side; Source is nil for added tables and
// Target is nil for removed ones, so a consumer can always render the
// structure behind the entry. Nested slices list only the objects that
// differ; a table present in both snapshots with no nested differences
// has status unchanged and empty slices.
type TableDiff struct {
	Schema      string            `json:"schema"`
	Name        string            `json:"name"`
	Type        schema.ObjectType `json:"type"`
	Status      DiffType          `json:"status"`
	Source      *schema.TableInfo `json:"source,omitempty"`
	Target      *schema.TableInfo `json:"target,omitempty"`
	Columns     []ColumnDiff      `json:"columns,omitempty"`
	Indexes     []IndexDiff       `json:"indexes,omitempty"`
	ForeignKeys []ForeignKeyDiff  `json:"foreignKeys,omitempty"`
	Triggers    []TriggerDiff     `json:"triggers,omitempty"`
	PrimaryKey  *PrimaryKeyDiff   `json:"primaryKey,omitempty"`
}

// DiffSummary tallies every per-table and per-nested-entity classification
// in the report. The nested-object counters cover only tables present in
// both snapshots: an added or removed table contributes its table counter
// and nothing else.
type DiffSummary struct {
	SourceTables         int `json:"sourceTables"`
	TargetTables         int `json:"targetTables"`
	TablesAdded          int `json:"tablesAdded"`
	TablesRemoved        int `json:"tablesRemoved"`
	TablesModified       int `json:"tablesModified"`
	TablesUnchanged      int `json:"tablesUnchanged"`
	ColumnsAdded         int `json:"columnsAdded"`
	ColumnsRemoved       int `json:"columnsRemoved"`
	ColumnsModified      int `json:"columnsModified"`
	ColumnsUnchanged     int `json:"columnsUnchanged"`
	IndexesAdded         int `json:"indexesAdded"`
	IndexesRemoved       int `json:"indexesRemoved"`
	IndexesModified      int `json:"indexesModified"`
	IndexesUnchanged     int `json:"indexesUnchanged"`
	ForeignKeysAdded     int `json:"foreignKeysAdded"`
	ForeignKeysRemoved   int `json:"foreignKeysRemoved"`
	ForeignKeysModified  int `json:"foreignKeysModified"`
	ForeignKeysUnchanged int `json:"foreignKeysUnchanged"`
	TriggersAdded        int `json:"triggersAdded"`
	TriggersRemoved      int `json:"triggersRemoved"`
	TriggersModified     int `json:"triggersModified"`
	TriggersUnchanged    int `json:"triggersUnchanged"`
	TotalColumnChanges   int `json:"totalColumnChanges"`
}

// EndpointMeta identifies one side of a comparison in the report header.
type EndpointMeta struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"` // connection or snapshot
}

// SchemaDiff is the full comparison report.
type SchemaDiff struct {
	Source      EndpointMeta `json:"source"`
	Target      EndpointMeta `json:"target"`
	GeneratedAt time.Time    `json:"generatedAt"`
	Tables      []TableDiff  `json:"tables"`
	Summary     DiffSummary  `json:"summary"`
}
