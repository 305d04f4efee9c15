// Package schema extracts structural metadata from SQLite databases.
//
// Everything here is a point-in-time read: introspection produces fresh,
// immutable values on every call and never opens a transaction. Callers
// diff or replace snapshots wholesale instead of mutating them.
package schema

// ObjectType distinguishes tables from views.
type ObjectType string

const (
	ObjectTable ObjectType = "table"
	ObjectView  ObjectType = "view"
)

// ColumnInfo describes one column of a table or view.
type ColumnInfo struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"` // declared type string, as written
	NotNull    bool    `json:"notNull"`
	Default    *string `json:"default,omitempty"` // default-value literal, nil if absent
	PrimaryKey bool    `json:"primaryKey"`
}

// IndexInfo describes one index. System-internal autoindexes and the
// implicit primary-key index are excluded by the introspector.
type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"` // in index order
	Unique  bool     `json:"unique"`
	SQL     string   `json:"sql,omitempty"` // original defining statement
}

// ForeignKeyInfo describes one column of a foreign-key constraint.
type ForeignKeyInfo struct {
	Column    string `json:"column"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
	OnDelete  string `json:"onDelete"`
	OnUpdate  string `json:"onUpdate"`
}

// TriggerInfo describes one trigger on a table.
type TriggerInfo struct {
	Name   string `json:"name"`
	Table  string `json:"table"`
	Timing string `json:"timing"` // before, after or instead of
	Event  string `json:"event"`  // insert, update or delete
	SQL    string `json:"sql,omitempty"`
}

// TableInfo describes one table or view, with its full structure resolved.
type TableInfo struct {
	Name        string           `json:"name"`
	Schema      string           `json:"schema"`
	Type        ObjectType       `json:"type"`
	Columns     []ColumnInfo     `json:"columns"`
	Indexes     []IndexInfo      `json:"indexes,omitempty"`
	ForeignKeys []ForeignKeyInfo `json:"foreignKeys,omitempty"`
	Triggers    []TriggerInfo    `json:"triggers,omitempty"`
	PrimaryKey  []string         `json:"primaryKey,omitempty"` // column names, declaration order
	RowCount    *int64           `json:"rowCount,omitempty"`   // advisory; absent if counting failed
	SQL         string           `json:"sql,omitempty"`        // original defining statement
}

// Column returns the named column, or nil.
func (t *TableInfo) Column(name string) *ColumnInfo {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// SchemaInfo groups the tables and views of one named schema
// (main or an attached database).
type SchemaInfo struct {
	Name   string      `json:"name"`
	Tables []TableInfo `json:"tables"`
	Views  []TableInfo `json:"views"`
}

// Snapshot is a named, immutable collection of schema groups, one per
// attached schema.
type Snapshot struct {
	Name    string       `json:"name"`
	Schemas []SchemaInfo `json:"schemas"`
}
