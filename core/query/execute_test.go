package query

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	cerrors "github.com/sqlitescope/sqlitescope/core/errors"
	"github.com/sqlitescope/sqlitescope/core/sqlite"
)

func setupQueryDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "query.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, qty INTEGER)",
		"INSERT INTO items (name, qty) VALUES ('bolt', 10), ('nut', 20), ('washer', 30)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup statement failed: %v", err)
		}
	}
	return db
}

func TestIsRead(t *testing.T) {
	tests := []struct {
		stmt string
		want bool
	}{
		{"SELECT * FROM items", true},
		{"  select 1", true},
		{"\n\tSELECT 1", true},
		{"PRAGMA table_info(items)", true},
		{"pragma user_version", true},
		{"EXPLAIN QUERY PLAN SELECT 1", true},
		{"explain select 1", true},
		{"INSERT INTO items (name) VALUES ('x')", false},
		{"UPDATE items SET qty = 0", false},
		{"DELETE FROM items", false},
		{"CREATE TABLE t (id INTEGER)", false},
		{"DROP TABLE items", false},
		{"WITH x AS (SELECT 1) SELECT * FROM x", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsRead(tt.stmt); got != tt.want {
			t.Errorf("IsRead(%q) = %v, want %v", tt.stmt, got, tt.want)
		}
	}
}

func TestExecuteRead(t *testing.T) {
	db := setupQueryDB(t)

	res, err := Execute(context.Background(), db, "SELECT name, qty FROM items ORDER BY id")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if len(res.Columns) != 2 || res.Columns[0] != "name" || res.Columns[1] != "qty" {
		t.Errorf("unexpected columns %v", res.Columns)
	}
	if len(res.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(res.Rows))
	}
	if res.RowsAffected != 3 {
		t.Errorf("expected RowsAffected 3 for a read, got %d", res.RowsAffected)
	}
	if name, ok := res.Rows[0][0].(string); !ok || name != "bolt" {
		t.Errorf("expected first row name bolt, got %v", res.Rows[0][0])
	}
	if res.LastInsertID != nil {
		t.Error("reads should not report a last insert id")
	}
	if res.Duration <= 0 {
		t.Error("expected a positive duration")
	}
}

func TestExecuteReadZeroRows(t *testing.T) {
	db := setupQueryDB(t)

	res, err := Execute(context.Background(), db, "SELECT name FROM items WHERE qty > 1000")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	// A zero-row read has no rows to derive column names from.
	if len(res.Columns) != 0 {
		t.Errorf("expected no columns on zero-row read, got %v", res.Columns)
	}
	if res.Rows == nil || len(res.Rows) != 0 {
		t.Errorf("expected empty (non-nil) rows, got %v", res.Rows)
	}
	if res.RowsAffected != 0 {
		t.Errorf("expected RowsAffected 0, got %d", res.RowsAffected)
	}
}

func TestExecuteWrite(t *testing.T) {
	db := setupQueryDB(t)

	res, err := Execute(context.Background(), db, "INSERT INTO items (name, qty) VALUES ('screw', 40)")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if res.RowsAffected != 1 {
		t.Errorf("expected 1 row affected, got %d", res.RowsAffected)
	}
	if res.LastInsertID == nil || *res.LastInsertID != 4 {
		t.Errorf("expected last insert id 4, got %v", res.LastInsertID)
	}
	if len(res.Rows) != 0 {
		t.Errorf("writes should return no rows, got %d", len(res.Rows))
	}
}

func TestExecuteUpdateAffectedCount(t *testing.T) {
	db := setupQueryDB(t)

	res, err := Execute(context.Background(), db, "UPDATE items SET qty = 0 WHERE qty >= 20")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.RowsAffected != 2 {
		t.Errorf("expected 2 rows affected, got %d", res.RowsAffected)
	}
	if res.LastInsertID != nil {
		t.Error("updates should not report a last insert id")
	}
}

func TestExecuteError(t *testing.T) {
	db := setupQueryDB(t)

	res, err := Execute(context.Background(), db, "SELECT * FROM no_such_table")
	if err == nil {
		t.Fatal("expected error for missing table")
	}
	if !errors.Is(err, cerrors.ErrExecution) {
		t.Errorf("expected execution error, got %v", err)
	}
	if res.Duration <= 0 {
		t.Error("expected duration to be populated on failure")
	}

	// The driver message passes through verbatim.
	var ee *cerrors.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatal("expected typed execution error")
	}
	if ee.Message == "" {
		t.Error("expected driver message in execution error")
	}
}

func TestExecuteSyntaxError(t *testing.T) {
	db := setupQueryDB(t)

	if _, err := Execute(context.Background(), db, "SELEC 1"); !errors.Is(err, cerrors.ErrExecution) {
		t.Errorf("expected execution error for syntax error, got %v", err)
	}
}
