package staging

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	cerrors "github.com/sqlitescope/sqlitescope/core/errors"
	"github.com/sqlitescope/sqlitescope/core/sqlite"
	"github.com/sqlitescope/sqlitescope/internal/logging"
)

// Apply writes an ordered list of changes inside a single transaction.
// Inserts enumerate only the columns present in their new-value map;
// updates and deletes target the physical rowid. The first failure rolls
// back the whole transaction, so the caller observes either every change
// or none.
//
// A read-only connection is refused before any statement runs.
func Apply(ctx context.Context, db *sql.DB, connID string, readOnly bool, changes []PendingChange) (int, error) {
	if readOnly {
		return 0, &cerrors.ReadOnlyError{ID: connID, Operation: "apply changes"}
	}
	if len(changes) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &cerrors.ApplyError{Err: err}
	}

	for i, c := range changes {
		stmt, args, err := buildStatement(c)
		if err == nil {
			_, err = tx.ExecContext(ctx, stmt, args...)
		}
		if err != nil {
			tx.Rollback()
			logging.ApplyEvent(connID, len(changes), "outcome", "rolled_back", "failed_at", i)
			return 0, &cerrors.ApplyError{Index: i, Kind: string(c.Kind), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &cerrors.ApplyError{Err: err}
	}
	logging.ApplyEvent(connID, len(changes), "outcome", "committed")
	return len(changes), nil
}

// buildStatement renders one change as SQL text plus bind arguments. All
// identifiers pass through the shared quoting utility; all values are
// bound.
func buildStatement(c PendingChange) (string, []any, error) {
	switch c.Kind {
	case Insert:
		cols := sortedColumns(c.NewValues)
		if len(cols) == 0 {
			return "INSERT INTO " + sqlite.Ident(c.Table) + " DEFAULT VALUES", nil, nil
		}
		quoted := make([]string, len(cols))
		marks := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, col := range cols {
			quoted[i] = sqlite.Ident(col)
			marks[i] = "?"
			args[i] = c.NewValues[col]
		}
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			sqlite.Ident(c.Table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
		return stmt, args, nil

	case Update:
		rowid, ok := c.Row.Rowid()
		if !ok {
			return "", nil, fmt.Errorf("update targets unsaved row %s", c.Row)
		}
		cols := sortedColumns(c.NewValues)
		if len(cols) == 0 {
			return "", nil, fmt.Errorf("update for table %s has no values", c.Table)
		}
		sets := make([]string, len(cols))
		args := make([]any, 0, len(cols)+1)
		for i, col := range cols {
			sets[i] = sqlite.Ident(col) + " = ?"
			args = append(args, c.NewValues[col])
		}
		args = append(args, rowid)
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE rowid = ?",
			sqlite.Ident(c.Table), strings.Join(sets, ", "))
		return stmt, args, nil

	case Delete:
		rowid, ok := c.Row.Rowid()
		if !ok {
			return "", nil, fmt.Errorf("delete targets unsaved row %s", c.Row)
		}
		return "DELETE FROM " + sqlite.Ident(c.Table) + " WHERE rowid = ?", []any{rowid}, nil

	default:
		return "", nil, fmt.Errorf("unknown change kind %q", c.Kind)
	}
}
