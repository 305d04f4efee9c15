// Package query executes ad-hoc SQL statements and paginated table reads
// against a borrowed connection handle.
//
// Statements are classified, never interpreted: a statement is read-shaped
// when its trimmed, lower-cased text begins with select, pragma or explain,
// and write-shaped otherwise. Driver failures surface verbatim; nothing is
// retried, since SQL execution is not idempotent by default.
package query

import (
	"context"
	"database/sql"
	"strings"
	"time"

	cerrors "github.com/sqlitescope/sqlitescope/core/errors"
)

// Result is the outcome of one statement. For read-shaped statements Rows
// holds every returned row and RowsAffected equals the row count; the
// column list is derived from the first returned row and stays empty when
// no rows come back. For write-shaped statements Rows is empty and
// RowsAffected/LastInsertID come from the driver.
//
// Duration is wall-clock around the driver call only and is populated even
// when the statement fails.
type Result struct {
	Columns      []string      `json:"columns"`
	Rows         [][]any       `json:"rows"`
	RowsAffected int64         `json:"rowsAffected"`
	LastInsertID *int64        `json:"lastInsertRowId,omitempty"`
	Duration     time.Duration `json:"-"`
}

var readPrefixes = []string{"select", "pragma", "explain"}

// IsRead classifies a statement as read-shaped.
func IsRead(stmt string) bool {
	s := strings.ToLower(strings.TrimSpace(stmt))
	for _, prefix := range readPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// Execute runs one arbitrary SQL statement. The returned Result carries the
// execution duration regardless of outcome; on failure the error is an
// ExecutionError wrapping the driver message verbatim.
func Execute(ctx context.Context, db *sql.DB, stmt string) (Result, error) {
	if IsRead(stmt) {
		return executeRead(ctx, db, stmt)
	}
	return executeWrite(ctx, db, stmt)
}

func executeRead(ctx context.Context, db *sql.DB, stmt string) (Result, error) {
	start := time.Now()
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return Result{Duration: time.Since(start)}, cerrors.NewExecution(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{Duration: time.Since(start)}, cerrors.NewExecution(err)
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{Duration: time.Since(start)}, cerrors.NewExecution(err)
		}
		for i := range vals {
			vals[i] = normalize(vals[i])
		}
		out = append(out, vals)
	}
	duration := time.Since(start)
	if err := rows.Err(); err != nil {
		return Result{Duration: duration}, cerrors.NewExecution(err)
	}

	res := Result{
		Rows:         out,
		RowsAffected: int64(len(out)),
		Duration:     duration,
	}
	// Column names come from the returned rows; a zero-row read has none.
	if len(out) > 0 {
		res.Columns = cols
	} else {
		res.Columns = []string{}
		res.Rows = [][]any{}
	}
	return res, nil
}

func executeWrite(ctx context.Context, db *sql.DB, stmt string) (Result, error) {
	start := time.Now()
	execResult, err := db.ExecContext(ctx, stmt)
	duration := time.Since(start)
	if err != nil {
		return Result{Duration: duration}, cerrors.NewExecution(err)
	}

	res := Result{
		Columns:  []string{},
		Rows:     [][]any{},
		Duration: duration,
	}
	if affected, err := execResult.RowsAffected(); err == nil {
		res.RowsAffected = affected
	}
	if id, err := execResult.LastInsertId(); err == nil && id > 0 {
		res.LastInsertID = &id
	}
	return res, nil
}

// normalize converts driver values to JSON-friendly shapes. Text arrives as
// []byte from some drivers; everything else passes through.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
