package staging

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sqlitescope/sqlitescope/core/sqlite"
)

// ValidationResult is the per-change outcome of a validation pass. It is a
// side artifact for the caller; the change itself is never mutated.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type columnMeta struct {
	name       string
	notNull    bool
	primaryKey bool
	hasDefault bool
}

// Validate checks each change independently against the current schema:
// the target table must exist, inserts/updates must not set a declared
// non-nullable, non-primary-key column to null, and an insert must supply
// every such column that has no declared default.
//
// Validation is advisory and side-effect-free. It locks nothing and
// reserves nothing, so Apply can still fail for reasons validation cannot
// anticipate, such as uniqueness constraints.
func Validate(ctx context.Context, db *sql.DB, changes []PendingChange) ([]ValidationResult, error) {
	tables := make(map[string][]columnMeta)
	results := make([]ValidationResult, len(changes))

	for i, c := range changes {
		cols, ok := tables[c.Table]
		if !ok {
			var err error
			cols, err = tableColumns(ctx, db, c.Table)
			if err != nil {
				return nil, err
			}
			tables[c.Table] = cols
		}

		if len(cols) == 0 {
			results[i] = ValidationResult{Valid: false, Reason: fmt.Sprintf("table %q does not exist", c.Table)}
			continue
		}

		results[i] = ValidationResult{Valid: true}
		if c.Kind == Delete {
			continue
		}
		for _, col := range cols {
			if !col.notNull || col.primaryKey {
				continue
			}
			val, present := c.NewValues[col.name]
			if present && val == nil {
				results[i] = ValidationResult{
					Valid:  false,
					Reason: fmt.Sprintf("column %q is NOT NULL and cannot be set to null", col.name),
				}
				break
			}
			if !present && c.Kind == Insert && !col.hasDefault {
				results[i] = ValidationResult{
					Valid:  false,
					Reason: fmt.Sprintf("column %q is NOT NULL with no default and must be provided", col.name),
				}
				break
			}
		}
	}
	return results, nil
}

// tableColumns resolves column constraints for one table. A missing table
// yields zero columns, which the caller treats as nonexistent.
func tableColumns(ctx context.Context, db *sql.DB, table string) ([]columnMeta, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqlite.Ident(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []columnMeta
	for rows.Next() {
		var cid, notnull, pk int
		var name, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, columnMeta{name: name, notNull: notnull != 0, primaryKey: pk > 0, hasDefault: dflt.Valid})
	}
	return cols, rows.Err()
}
