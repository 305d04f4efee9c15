package staging

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	cerrors "github.com/sqlitescope/sqlitescope/core/errors"
	"github.com/sqlitescope/sqlitescope/core/sqlite"
)

func setupApplyDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "apply.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		"CREATE TABLE accounts (id INTEGER PRIMARY KEY, owner TEXT NOT NULL, balance INTEGER NOT NULL, code TEXT UNIQUE)",
		"INSERT INTO accounts (owner, balance, code) VALUES ('alice', 100, 'A'), ('bob', 50, 'B')",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup statement failed: %v", err)
		}
	}
	return db
}

func countRows(t *testing.T, db *sql.DB, where string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT count(*) FROM accounts" + where).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func TestApplyCommitsAllChanges(t *testing.T) {
	db := setupApplyDB(t)

	cs := NewChangeSet()
	cs.Add(PendingChange{
		Table: "accounts", Row: cs.NewRow(), Kind: Insert,
		NewValues: map[string]any{"owner": "carol", "balance": 10, "code": "C"},
	})
	cs.Add(PendingChange{
		Table: "accounts", Row: CommittedRow(1), Kind: Update,
		NewValues: map[string]any{"balance": 90},
	})
	cs.Add(PendingChange{Table: "accounts", Row: CommittedRow(2), Kind: Delete})

	applied, err := Apply(context.Background(), db, "conn-1", false, cs.Changes())
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if applied != 3 {
		t.Errorf("expected 3 applied, got %d", applied)
	}

	if got := countRows(t, db, " WHERE owner = 'carol'"); got != 1 {
		t.Errorf("expected inserted row, got %d", got)
	}
	var balance int
	if err := db.QueryRow("SELECT balance FROM accounts WHERE id = 1").Scan(&balance); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if balance != 90 {
		t.Errorf("expected updated balance 90, got %d", balance)
	}
	if got := countRows(t, db, " WHERE id = 2"); got != 0 {
		t.Errorf("expected row 2 deleted, got %d", got)
	}
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	db := setupApplyDB(t)

	// The second change violates the UNIQUE constraint on code; the first
	// change must not survive.
	changes := []PendingChange{
		{
			Table: "accounts", Row: UncommittedRow(1), Kind: Insert,
			NewValues: map[string]any{"owner": "carol", "balance": 10, "code": "C"},
		},
		{
			Table: "accounts", Row: UncommittedRow(2), Kind: Insert,
			NewValues: map[string]any{"owner": "dave", "balance": 20, "code": "A"},
		},
	}

	applied, err := Apply(context.Background(), db, "conn-1", false, changes)
	if err == nil {
		t.Fatal("expected apply to fail")
	}
	if applied != 0 {
		t.Errorf("expected 0 applied on failure, got %d", applied)
	}
	if !errors.Is(err, cerrors.ErrApply) {
		t.Errorf("expected apply error, got %v", err)
	}

	var ae *cerrors.ApplyError
	if !errors.As(err, &ae) {
		t.Fatal("expected typed apply error")
	}
	if ae.Index != 1 {
		t.Errorf("expected failure at index 1, got %d", ae.Index)
	}
	if ae.Kind != "insert" {
		t.Errorf("expected failing kind insert, got %s", ae.Kind)
	}

	// All-or-nothing: carol must not exist.
	if got := countRows(t, db, " WHERE owner = 'carol'"); got != 0 {
		t.Errorf("expected rollback to remove carol, got %d rows", got)
	}
	if got := countRows(t, db, ""); got != 2 {
		t.Errorf("expected original 2 rows, got %d", got)
	}
}

func TestApplyRefusesReadOnly(t *testing.T) {
	db := setupApplyDB(t)

	changes := []PendingChange{
		{Table: "accounts", Row: CommittedRow(1), Kind: Delete},
	}

	_, err := Apply(context.Background(), db, "conn-1", true, changes)
	if !errors.Is(err, cerrors.ErrReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}

	// The refusal happens before any statement runs.
	if got := countRows(t, db, ""); got != 2 {
		t.Errorf("expected untouched table, got %d rows", got)
	}
}

func TestApplyEmptyChangeList(t *testing.T) {
	db := setupApplyDB(t)

	applied, err := Apply(context.Background(), db, "conn-1", false, nil)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if applied != 0 {
		t.Errorf("expected 0 applied, got %d", applied)
	}
}

func TestApplyInsertWithoutValues(t *testing.T) {
	db := setupApplyDB(t)

	if _, err := db.Exec("CREATE TABLE defaults_only (id INTEGER PRIMARY KEY, note TEXT DEFAULT 'n/a')"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	changes := []PendingChange{
		{Table: "defaults_only", Row: UncommittedRow(1), Kind: Insert},
	}
	if _, err := Apply(context.Background(), db, "conn-1", false, changes); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	var note string
	if err := db.QueryRow("SELECT note FROM defaults_only").Scan(&note); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if note != "n/a" {
		t.Errorf("expected default note, got %s", note)
	}
}

func TestApplyRejectsUnsavedRowTargets(t *testing.T) {
	db := setupApplyDB(t)

	// Updates and deletes need a physical rowid; a synthetic identifier
	// cannot address an existing row.
	changes := []PendingChange{
		{Table: "accounts", Row: UncommittedRow(1), Kind: Update, NewValues: map[string]any{"balance": 1}},
	}
	if _, err := Apply(context.Background(), db, "conn-1", false, changes); !errors.Is(err, cerrors.ErrApply) {
		t.Errorf("expected apply error for unsaved update target, got %v", err)
	}

	changes = []PendingChange{
		{Table: "accounts", Row: UncommittedRow(1), Kind: Delete},
	}
	if _, err := Apply(context.Background(), db, "conn-1", false, changes); !errors.Is(err, cerrors.ErrApply) {
		t.Errorf("expected apply error for unsaved delete target, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	db := setupApplyDB(t)

	changes := []PendingChange{
		{
			Table: "accounts", Row: UncommittedRow(1), Kind: Insert,
			NewValues: map[string]any{"owner": "erin", "balance": 5},
		},
		{
			Table: "accounts", Row: CommittedRow(1), Kind: Update,
			NewValues: map[string]any{"owner": nil},
		},
		{
			Table: "ghost", Row: CommittedRow(1), Kind: Delete,
		},
		{
			Table: "accounts", Row: CommittedRow(2), Kind: Delete,
		},
		{
			Table: "accounts", Row: CommittedRow(1), Kind: Update,
			NewValues: map[string]any{"code": nil},
		},
	}

	results, err := Validate(context.Background(), db, changes)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(results) != len(changes) {
		t.Fatalf("expected %d results, got %d", len(changes), len(results))
	}

	if !results[0].Valid {
		t.Errorf("insert with all required values should be valid: %s", results[0].Reason)
	}
	if results[1].Valid {
		t.Error("null into NOT NULL column should be invalid")
	}
	if results[2].Valid {
		t.Error("change against missing table should be invalid")
	}
	if !results[3].Valid {
		t.Errorf("delete should be valid: %s", results[3].Reason)
	}
	if !results[4].Valid {
		t.Errorf("null into nullable column should be valid: %s", results[4].Reason)
	}
}

func TestValidateInsertMissingRequiredColumn(t *testing.T) {
	db := setupApplyDB(t)
	if _, err := db.Exec("CREATE TABLE invoices (id INTEGER PRIMARY KEY, ref TEXT NOT NULL, status TEXT NOT NULL DEFAULT 'open')"); err != nil {
		t.Fatalf("setup statement failed: %v", err)
	}

	changes := []PendingChange{
		// Omits balance, which is NOT NULL with no default.
		{
			Table: "accounts", Row: UncommittedRow(1), Kind: Insert,
			NewValues: map[string]any{"owner": "erin"},
		},
		// Omits status, which has a declared default.
		{
			Table: "invoices", Row: UncommittedRow(2), Kind: Insert,
			NewValues: map[string]any{"ref": "INV-1"},
		},
		// An update may omit any column it does not touch.
		{
			Table: "accounts", Row: CommittedRow(1), Kind: Update,
			NewValues: map[string]any{"owner": "eve"},
		},
	}

	results, err := Validate(context.Background(), db, changes)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if results[0].Valid {
		t.Error("insert omitting a NOT NULL column without default should be invalid")
	}
	if !results[1].Valid {
		t.Errorf("insert omitting a defaulted NOT NULL column should be valid: %s", results[1].Reason)
	}
	if !results[2].Valid {
		t.Errorf("partial update should be valid: %s", results[2].Reason)
	}
}

func TestValidateIsSideEffectFree(t *testing.T) {
	db := setupApplyDB(t)

	changes := []PendingChange{
		{Table: "accounts", Row: CommittedRow(1), Kind: Delete},
	}
	if _, err := Validate(context.Background(), db, changes); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	if got := countRows(t, db, ""); got != 2 {
		t.Errorf("validation must not modify data, got %d rows", got)
	}
}
