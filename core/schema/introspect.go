package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/sqlitescope/sqlitescope/core/sqlite"
)

// Introspect extracts the full structure of one named schema. schemaName is
// "main" for the primary database or the name of an attached database.
//
// System-internal catalog objects (sqlite_ prefix) and auto-generated
// primary-key indexes are excluded. Row counts are computed with a full
// COUNT(*) per table and are advisory: a failed count leaves RowCount nil
// rather than failing the call.
func Introspect(ctx context.Context, db *sql.DB, schemaName string) (*SchemaInfo, error) {
	master := sqlite.Ident(schemaName) + ".sqlite_master"

	rows, err := db.QueryContext(ctx,
		"SELECT name, type, COALESCE(sql, '') FROM "+master+
			" WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list objects in %s: %w", schemaName, err)
	}
	defer rows.Close()

	type object struct {
		name, kind, sql string
	}
	var objects []object
	for rows.Next() {
		var o object
		if err := rows.Scan(&o.name, &o.kind, &o.sql); err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	info := &SchemaInfo{Name: schemaName, Tables: []TableInfo{}, Views: []TableInfo{}}
	for _, o := range objects {
		t := TableInfo{
			Name:   o.name,
			Schema: schemaName,
			Type:   ObjectType(o.kind),
			SQL:    o.sql,
		}

		cols, pk, err := introspectColumns(ctx, db, schemaName, o.name)
		if err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", o.name, err)
		}
		t.Columns = cols
		t.PrimaryKey = pk

		indexes, err := introspectIndexes(ctx, db, schemaName, o.name)
		if err != nil {
			return nil, fmt.Errorf("introspect indexes for %s: %w", o.name, err)
		}
		t.Indexes = indexes

		fks, err := introspectForeignKeys(ctx, db, schemaName, o.name)
		if err != nil {
			return nil, fmt.Errorf("introspect foreign keys for %s: %w", o.name, err)
		}
		t.ForeignKeys = fks

		if t.Type == ObjectTable {
			triggers, err := introspectTriggers(ctx, db, schemaName, o.name)
			if err != nil {
				return nil, fmt.Errorf("introspect triggers for %s: %w", o.name, err)
			}
			t.Triggers = triggers

			// Advisory: a count can fail (for example after a concurrent
			// drop); the table entry survives without one.
			var count int64
			err = db.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM "+sqlite.QualifiedIdent(schemaName, o.name)).Scan(&count)
			if err == nil {
				t.RowCount = &count
			}
		}

		switch t.Type {
		case ObjectView:
			info.Views = append(info.Views, t)
		default:
			info.Tables = append(info.Tables, t)
		}
	}

	return info, nil
}

// IntrospectAll walks PRAGMA database_list and introspects every attached
// schema (excluding temp), producing a snapshot suitable for comparison.
func IntrospectAll(ctx context.Context, db *sql.DB, name string) (*Snapshot, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	var names []string
	for rows.Next() {
		var seq int
		var schemaName string
		var file sql.NullString
		if err := rows.Scan(&seq, &schemaName, &file); err != nil {
			rows.Close()
			return nil, err
		}
		if schemaName == "temp" {
			continue
		}
		names = append(names, schemaName)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap := &Snapshot{Name: name}
	for _, schemaName := range names {
		si, err := Introspect(ctx, db, schemaName)
		if err != nil {
			return nil, err
		}
		snap.Schemas = append(snap.Schemas, *si)
	}
	return snap, nil
}

func introspectColumns(ctx context.Context, db *sql.DB, schemaName, table string) ([]ColumnInfo, []string, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA %s.table_info(%s)", sqlite.Ident(schemaName), sqlite.Ident(table)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type pkCol struct {
		name string
		pos  int
	}
	var cols []ColumnInfo
	var pkCols []pkCol

	for rows.Next() {
		var cid, notnull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return nil, nil, err
		}
		col := ColumnInfo{
			Name:       name,
			Type:       colType,
			NotNull:    notnull != 0,
			PrimaryKey: pk > 0,
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		cols = append(cols, col)
		if pk > 0 {
			pkCols = append(pkCols, pkCol{name: name, pos: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].pos < pkCols[j].pos })
	var pk []string
	for _, c := range pkCols {
		pk = append(pk, c.name)
	}
	return cols, pk, nil
}

func introspectIndexes(ctx context.Context, db *sql.DB, schemaName, table string) ([]IndexInfo, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA %s.index_list(%s)", sqlite.Ident(schemaName), sqlite.Ident(table)))
	if err != nil {
		return nil, err
	}

	type listed struct {
		name   string
		unique bool
	}
	var names []listed
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		// Auto-generated primary-key and unique-constraint indexes are
		// internal; the PK column set is already derived from table_info.
		if origin == "pk" || strings.HasPrefix(name, "sqlite_autoindex_") {
			continue
		}
		names = append(names, listed{name: name, unique: unique == 1})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var indexes []IndexInfo
	for _, l := range names {
		idx := IndexInfo{Name: l.name, Unique: l.unique}

		colRows, err := db.QueryContext(ctx,
			fmt.Sprintf("PRAGMA %s.index_info(%s)", sqlite.Ident(schemaName), sqlite.Ident(l.name)))
		if err != nil {
			return nil, err
		}
		for colRows.Next() {
			var seqno, cid int
			var colName sql.NullString
			if err := colRows.Scan(&seqno, &cid, &colName); err != nil {
				colRows.Close()
				return nil, err
			}
			if colName.Valid {
				idx.Columns = append(idx.Columns, colName.String)
			}
		}
		colRows.Close()
		if err := colRows.Err(); err != nil {
			return nil, err
		}

		var idxSQL sql.NullString
		err = db.QueryRowContext(ctx,
			"SELECT sql FROM "+sqlite.Ident(schemaName)+".sqlite_master WHERE type = 'index' AND name = ?",
			l.name).Scan(&idxSQL)
		if err == nil && idxSQL.Valid {
			idx.SQL = idxSQL.String
		}

		indexes = append(indexes, idx)
	}
	return indexes, nil
}

func introspectForeignKeys(ctx context.Context, db *sql.DB, schemaName, table string) ([]ForeignKeyInfo, error) {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("PRAGMA %s.foreign_key_list(%s)", sqlite.Ident(schemaName), sqlite.Ident(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKeyInfo
	for rows.Next() {
		var id, seq int
		var refTable, from, onUpdate, onDelete, match string
		var to sql.NullString // NULL when the constraint references an implicit PK
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fks = append(fks, ForeignKeyInfo{
			Column:    from,
			RefTable:  refTable,
			RefColumn: to.String,
			OnDelete:  onDelete,
			OnUpdate:  onUpdate,
		})
	}
	return fks, rows.Err()
}

func introspectTriggers(ctx context.Context, db *sql.DB, schemaName, table string) ([]TriggerInfo, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name, tbl_name, COALESCE(sql, '') FROM "+sqlite.Ident(schemaName)+".sqlite_master"+
			" WHERE type = 'trigger' AND tbl_name = ? ORDER BY name", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []TriggerInfo
	for rows.Next() {
		var tr TriggerInfo
		if err := rows.Scan(&tr.Name, &tr.Table, &tr.SQL); err != nil {
			return nil, err
		}
		tr.Timing, tr.Event = parseTriggerClause(tr.SQL)
		triggers = append(triggers, tr)
	}
	return triggers, rows.Err()
}

// parseTriggerClause recovers timing and event from a CREATE TRIGGER
// statement. SQLite stores only the original text, so this is textual:
// the timing keyword (if any) and the first event keyword after it.
func parseTriggerClause(createSQL string) (timing, event string) {
	upper := strings.ToUpper(createSQL)
	timing = "after" // SQLite default when no timing keyword is given
	rest := upper

	switch {
	case strings.Contains(upper, "INSTEAD OF"):
		timing = "instead of"
		rest = upper[strings.Index(upper, "INSTEAD OF"):]
	case strings.Contains(upper, "BEFORE"):
		timing = "before"
		rest = upper[strings.Index(upper, "BEFORE"):]
	case strings.Contains(upper, "AFTER"):
		rest = upper[strings.Index(upper, "AFTER"):]
	}

	event = "insert"
	best := -1
	for _, ev := range []string{"INSERT", "UPDATE", "DELETE"} {
		if i := strings.Index(rest, ev); i >= 0 && (best < 0 || i < best) {
			best = i
			event = strings.ToLower(ev)
		}
	}
	return timing, event
}
