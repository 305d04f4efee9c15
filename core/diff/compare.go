package diff

import (
	"sort"
	"time"

	"github.com/sqlitescope/sqlitescope/core/schema"
)

// Compare diffs two snapshots. Tables and views are matched by
// (schema, name); the report lists every object from either side, ordered
// by schema then name, so the output is deterministic for a given pair of
// inputs.
func Compare(source, target schema.Snapshot, srcMeta, tgtMeta EndpointMeta) SchemaDiff {
	srcTables := collectTables(source)
	tgtTables := collectTables(target)

	keys := make([]tableKey, 0, len(srcTables))
	for k := range srcTables {
		keys = append(keys, k)
	}
	for k := range tgtTables {
		if _, ok := srcTables[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].schema != keys[j].schema {
			return keys[i].schema < keys[j].schema
		}
		return keys[i].name < keys[j].name
	})

	report := SchemaDiff{
		Source:      srcMeta,
		Target:      tgtMeta,
		GeneratedAt: time.Now().UTC(),
		Tables:      make([]TableDiff, 0, len(keys)),
	}
	report.Summary.SourceTables = len(srcTables)
	report.Summary.TargetTables = len(tgtTables)

	for _, k := range keys {
		src, inSrc := srcTables[k]
		tgt, inTgt := tgtTables[k]

		switch {
		case !inTgt:
			report.Tables = append(report.Tables, TableDiff{
				Schema: k.schema, Name: k.name, Type: src.Type, Status: DiffRemoved,
				Source: &src,
			})
			report.Summary.TablesRemoved++
		case !inSrc:
			report.Tables = append(report.Tables, TableDiff{
				Schema: k.schema, Name: k.name, Type: tgt.Type, Status: DiffAdded,
				Target: &tgt,
			})
			report.Summary.TablesAdded++
		default:
			td := compareTable(k, src, tgt)
			if td.Status == DiffModified {
				report.Summary.TablesModified++
			} else {
				report.Summary.TablesUnchanged++
			}
			tallyNested(&report.Summary, td, src, tgt)
			report.Tables = append(report.Tables, td)
		}
	}

	report.Summary.TotalColumnChanges = report.Summary.ColumnsAdded +
		report.Summary.ColumnsRemoved + report.Summary.ColumnsModified
	return report
}

type tableKey struct {
	schema string
	name   string
}

func collectTables(snap schema.Snapshot) map[tableKey]schema.TableInfo {
	out := make(map[tableKey]schema.TableInfo)
	for _, s := range snap.Schemas {
		for _, t := range s.Tables {
			out[tableKey{schema: s.Name, name: t.Name}] = t
		}
		for _, v := range s.Views {
			out[tableKey{schema: s.Name, name: v.Name}] = v
		}
	}
	return out
}

// tallyNested accumulates the nested-entity counters for one table present
// in both snapshots. Diff slices list only non-unchanged entries, so the
// unchanged count per category is the matched-name union minus them.
func tallyNested(sum *DiffSummary, td TableDiff, src, tgt schema.TableInfo) {
	for _, cd := range td.Columns {
		switch cd.Status {
		case DiffAdded:
			sum.ColumnsAdded++
		case DiffRemoved:
			sum.ColumnsRemoved++
		case DiffModified:
			sum.ColumnsModified++
		}
	}
	sum.ColumnsUnchanged += len(unionNames(columnNames(src.Columns), columnNames(tgt.Columns))) - len(td.Columns)

	for _, ix := range td.Indexes {
		switch ix.Status {
		case DiffAdded:
			sum.IndexesAdded++
		case DiffRemoved:
			sum.IndexesRemoved++
		case DiffModified:
			sum.IndexesModified++
		}
	}
	sum.IndexesUnchanged += len(unionNames(indexNames(src.Indexes), indexNames(tgt.Indexes))) - len(td.Indexes)

	for _, fk := range td.ForeignKeys {
		switch fk.Status {
		case DiffAdded:
			sum.ForeignKeysAdded++
		case DiffRemoved:
			sum.ForeignKeysRemoved++
		case DiffModified:
			sum.ForeignKeysModified++
		}
	}
	sum.ForeignKeysUnchanged += len(unionNames(foreignKeyColumns(src.ForeignKeys), foreignKeyColumns(tgt.ForeignKeys))) - len(td.ForeignKeys)

	for _, tr := range td.Triggers {
		switch tr.Status {
		case DiffAdded:
			sum.TriggersAdded++
		case DiffRemoved:
			sum.TriggersRemoved++
		case DiffModified:
			sum.TriggersModified++
		}
	}
	sum.TriggersUnchanged += len(unionNames(triggerNames(src.Triggers), triggerNames(tgt.Triggers))) - len(td.Triggers)
}

func compareTable(k tableKey, src, tgt schema.TableInfo) TableDiff {
	td := TableDiff{
		Schema: k.schema, Name: k.name, Type: tgt.Type, Status: DiffUnchanged,
		Source: &src, Target: &tgt,
	}

	td.Columns = compareColumns(src.Columns, tgt.Columns)
	td.Indexes = compareIndexes(src.Indexes, tgt.Indexes)
	td.ForeignKeys = compareForeignKeys(src.ForeignKeys, tgt.ForeignKeys)
	td.Triggers = compareTriggers(src.Triggers, tgt.Triggers)
	if !sameSet(src.PrimaryKey, tgt.PrimaryKey) {
		td.PrimaryKey = &PrimaryKeyDiff{From: src.PrimaryKey, To: tgt.PrimaryKey}
	}

	if len(td.Columns) > 0 || len(td.Indexes) > 0 || len(td.ForeignKeys) > 0 ||
		len(td.Triggers) > 0 || td.PrimaryKey != nil {
		td.Status = DiffModified
	}
	return td
}

func compareColumns(src, tgt []schema.ColumnInfo) []ColumnDiff {
	srcBy := make(map[string]schema.ColumnInfo, len(src))
	for _, c := range src {
		srcBy[c.Name] = c
	}
	tgtBy := make(map[string]schema.ColumnInfo, len(tgt))
	for _, c := range tgt {
		tgtBy[c.Name] = c
	}

	var diffs []ColumnDiff
	for _, name := range unionNames(columnNames(src), columnNames(tgt)) {
		s, inSrc := srcBy[name]
		t, inTgt := tgtBy[name]
		switch {
		case !inTgt:
			diffs = append(diffs, ColumnDiff{Name: name, Status: DiffRemoved})
		case !inSrc:
			diffs = append(diffs, ColumnDiff{Name: name, Status: DiffAdded})
		default:
			changes := map[string]FieldChange{}
			if s.Type != t.Type {
				changes["type"] = FieldChange{From: s.Type, To: t.Type}
			}
			if s.NotNull != t.NotNull {
				changes["nullable"] = FieldChange{From: !s.NotNull, To: !t.NotNull}
			}
			if !sameStringPtr(s.Default, t.Default) {
				changes["default"] = FieldChange{From: strPtrValue(s.Default), To: strPtrValue(t.Default)}
			}
			if s.PrimaryKey != t.PrimaryKey {
				changes["primaryKey"] = FieldChange{From: s.PrimaryKey, To: t.PrimaryKey}
			}
			if len(changes) > 0 {
				diffs = append(diffs, ColumnDiff{Name: name, Status: DiffModified, Changes: changes})
			}
		}
	}
	return diffs
}

func compareIndexes(src, tgt []schema.IndexInfo) []IndexDiff {
	srcBy := make(map[string]schema.IndexInfo, len(src))
	names := make([]string, 0, len(src))
	for _, ix := range src {
		srcBy[ix.Name] = ix
		names = append(names, ix.Name)
	}
	tgtBy := make(map[string]schema.IndexInfo, len(tgt))
	tgtNames := make([]string, 0, len(tgt))
	for _, ix := range tgt {
		tgtBy[ix.Name] = ix
		tgtNames = append(tgtNames, ix.Name)
	}

	var diffs []IndexDiff
	for _, name := range unionNames(names, tgtNames) {
		s, inSrc := srcBy[name]
		t, inTgt := tgtBy[name]
		switch {
		case !inTgt:
			diffs = append(diffs, IndexDiff{Name: name, Status: DiffRemoved})
		case !inSrc:
			diffs = append(diffs, IndexDiff{Name: name, Status: DiffAdded})
		default:
			changes := map[string]FieldChange{}
			if !sameList(s.Columns, t.Columns) {
				changes["columns"] = FieldChange{From: s.Columns, To: t.Columns}
			}
			if s.Unique != t.Unique {
				changes["unique"] = FieldChange{From: s.Unique, To: t.Unique}
			}
			if len(changes) > 0 {
				diffs = append(diffs, IndexDiff{Name: name, Status: DiffModified, Changes: changes})
			}
		}
	}
	return diffs
}

func compareForeignKeys(src, tgt []schema.ForeignKeyInfo) []ForeignKeyDiff {
	srcBy := make(map[string]schema.ForeignKeyInfo, len(src))
	names := make([]string, 0, len(src))
	for _, fk := range src {
		srcBy[fk.Column] = fk
		names = append(names, fk.Column)
	}
	tgtBy := make(map[string]schema.ForeignKeyInfo, len(tgt))
	tgtNames := make([]string, 0, len(tgt))
	for _, fk := range tgt {
		tgtBy[fk.Column] = fk
		tgtNames = append(tgtNames, fk.Column)
	}

	var diffs []ForeignKeyDiff
	for _, col := range unionNames(names, tgtNames) {
		s, inSrc := srcBy[col]
		t, inTgt := tgtBy[col]
		switch {
		case !inTgt:
			diffs = append(diffs, ForeignKeyDiff{Column: col, Status: DiffRemoved})
		case !inSrc:
			diffs = append(diffs, ForeignKeyDiff{Column: col, Status: DiffAdded})
		default:
			changes := map[string]FieldChange{}
			if s.RefTable != t.RefTable {
				changes["refTable"] = FieldChange{From: s.RefTable, To: t.RefTable}
			}
			if s.RefColumn != t.RefColumn {
				changes["refColumn"] = FieldChange{From: s.RefColumn, To: t.RefColumn}
			}
			if s.OnDelete != t.OnDelete {
				changes["onDelete"] = FieldChange{From: s.OnDelete, To: t.OnDelete}
			}
			if s.OnUpdate != t.OnUpdate {
				changes["onUpdate"] = FieldChange{From: s.OnUpdate, To: t.OnUpdate}
			}
			if len(changes) > 0 {
				diffs = append(diffs, ForeignKeyDiff{Column: col, Status: DiffModified, Changes: changes})
			}
		}
	}
	return diffs
}

func compareTriggers(src, tgt []schema.TriggerInfo) []TriggerDiff {
	srcBy := make(map[string]schema.TriggerInfo, len(src))
	names := make([]string, 0, len(src))
	for _, tr := range src {
		srcBy[tr.Name] = tr
		names = append(names, tr.Name)
	}
	tgtBy := make(map[string]schema.TriggerInfo, len(tgt))
	tgtNames := make([]string, 0, len(tgt))
	for _, tr := range tgt {
		tgtBy[tr.Name] = tr
		tgtNames = append(tgtNames, tr.Name)
	}

	var diffs []TriggerDiff
	for _, name := range unionNames(names, tgtNames) {
		s, inSrc := srcBy[name]
		t, inTgt := tgtBy[name]
		switch {
		case !inTgt:
			diffs = append(diffs, TriggerDiff{Name: name, Status: DiffRemoved})
		case !inSrc:
			diffs = append(diffs, TriggerDiff{Name: name, Status: DiffAdded})
		default:
			changes := map[string]FieldChange{}
			if s.Timing != t.Timing {
				changes["timing"] = FieldChange{From: s.Timing, To: t.Timing}
			}
			if s.Event != t.Event {
				changes["event"] = FieldChange{From: s.Event, To: t.Event}
			}
			if len(changes) > 0 {
				diffs = append(diffs, TriggerDiff{Name: name, Status: DiffModified, Changes: changes})
			}
		}
	}
	return diffs
}

func columnNames(cols []schema.ColumnInfo) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func indexNames(ixs []schema.IndexInfo) []string {
	out := make([]string, len(ixs))
	for i, ix := range ixs {
		out[i] = ix.Name
	}
	return out
}

func foreignKeyColumns(fks []schema.ForeignKeyInfo) []string {
	out := make([]string, len(fks))
	for i, fk := range fks {
		out[i] = fk.Column
	}
	return out
}

func triggerNames(trs []schema.TriggerInfo) []string {
	out := make([]string, len(trs))
	for i, tr := range trs {
		out[i] = tr.Name
	}
	return out
}

// unionNames merges two name lists, source order first, then names only
// the target has, in target order.
func unionNames(src, tgt []string) []string {
	seen := make(map[string]bool, len(src))
	out := make([]string, 0, len(src)+len(tgt))
	for _, n := range src {
		seen[n] = true
		out = append(out, n)
	}
	for _, n := range tgt {
		if !seen[n] {
			out = append(out, n)
		}
	}
	return out
}

// sameList compares ordered; index column order is significant.
func sameList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// sameSet compares unordered; primary-key column order is not.
func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	return sameList(as, bs)
}

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
