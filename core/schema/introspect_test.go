package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/sqlitescope/sqlitescope/core/sqlite"
)

// setupTestDB creates a database exercising every introspected object
// kind: tables with constraints, an index, a foreign key, a trigger and
// a view.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "introspect.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT DEFAULT 'anonymous',
			age INTEGER
		)`,
		`CREATE UNIQUE INDEX idx_users_email ON users (email)`,
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL
		)`,
		`CREATE INDEX idx_posts_user ON posts (user_id, title)`,
		`CREATE TRIGGER trg_posts_audit AFTER INSERT ON posts BEGIN
			UPDATE users SET age = age WHERE id = NEW.user_id;
		END`,
		`CREATE VIEW user_emails AS SELECT email FROM users`,
		`CREATE TABLE pairs (a TEXT, b TEXT, PRIMARY KEY (a, b))`,
		`INSERT INTO users (email) VALUES ('a@x.test'), ('b@x.test')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup statement failed: %v\n%s", err, stmt)
		}
	}
	return db
}

func findTable(t *testing.T, info *SchemaInfo, name string) TableInfo {
	t.Helper()
	for _, tbl := range info.Tables {
		if tbl.Name == name {
			return tbl
		}
	}
	t.Fatalf("table %s not found", name)
	return TableInfo{}
}

func TestIntrospectTables(t *testing.T) {
	db := setupTestDB(t)

	info, err := Introspect(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("introspect failed: %v", err)
	}

	if len(info.Tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(info.Tables))
	}
	if len(info.Views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(info.Views))
	}

	users := findTable(t, info, "users")
	if users.Type != ObjectTable {
		t.Errorf("expected table type, got %s", users.Type)
	}
	if len(users.Columns) != 4 {
		t.Fatalf("expected 4 columns, got %d", len(users.Columns))
	}

	email := users.Column("email")
	if email == nil {
		t.Fatal("email column not found")
	}
	if !email.NotNull {
		t.Error("email should be NOT NULL")
	}
	if email.PrimaryKey {
		t.Error("email should not be part of the primary key")
	}

	name := users.Column("name")
	if name == nil || name.Default == nil || *name.Default != "'anonymous'" {
		t.Errorf("expected name default 'anonymous', got %+v", name)
	}

	id := users.Column("id")
	if id == nil || !id.PrimaryKey {
		t.Error("id should be the primary key")
	}
	if len(users.PrimaryKey) != 1 || users.PrimaryKey[0] != "id" {
		t.Errorf("expected primary key [id], got %v", users.PrimaryKey)
	}

	if users.RowCount == nil || *users.RowCount != 2 {
		t.Errorf("expected advisory row count 2, got %v", users.RowCount)
	}
}

func TestIntrospectCompositePrimaryKey(t *testing.T) {
	db := setupTestDB(t)

	info, err := Introspect(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("introspect failed: %v", err)
	}

	pairs := findTable(t, info, "pairs")
	if len(pairs.PrimaryKey) != 2 {
		t.Fatalf("expected composite key of 2 columns, got %v", pairs.PrimaryKey)
	}
	// Key columns come back in declaration order.
	if pairs.PrimaryKey[0] != "a" || pairs.PrimaryKey[1] != "b" {
		t.Errorf("expected key order [a b], got %v", pairs.PrimaryKey)
	}
}

func TestIntrospectIndexes(t *testing.T) {
	db := setupTestDB(t)

	info, err := Introspect(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("introspect failed: %v", err)
	}

	users := findTable(t, info, "users")
	if len(users.Indexes) != 1 {
		t.Fatalf("expected 1 index on users, got %d", len(users.Indexes))
	}
	ix := users.Indexes[0]
	if ix.Name != "idx_users_email" {
		t.Errorf("expected idx_users_email, got %s", ix.Name)
	}
	if !ix.Unique {
		t.Error("expected unique index")
	}
	if len(ix.Columns) != 1 || ix.Columns[0] != "email" {
		t.Errorf("expected index columns [email], got %v", ix.Columns)
	}

	posts := findTable(t, info, "posts")
	if len(posts.Indexes) != 1 {
		t.Fatalf("expected 1 index on posts, got %d", len(posts.Indexes))
	}
	if cols := posts.Indexes[0].Columns; len(cols) != 2 || cols[0] != "user_id" || cols[1] != "title" {
		t.Errorf("expected ordered index columns [user_id title], got %v", cols)
	}
}

func TestIntrospectForeignKeys(t *testing.T) {
	db := setupTestDB(t)

	info, err := Introspect(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("introspect failed: %v", err)
	}

	posts := findTable(t, info, "posts")
	if len(posts.ForeignKeys) != 1 {
		t.Fatalf("expected 1 foreign key, got %d", len(posts.ForeignKeys))
	}
	fk := posts.ForeignKeys[0]
	if fk.Column != "user_id" || fk.RefTable != "users" {
		t.Errorf("unexpected foreign key %+v", fk)
	}
	if fk.OnDelete != "CASCADE" {
		t.Errorf("expected ON DELETE CASCADE, got %s", fk.OnDelete)
	}
}

func TestIntrospectTriggers(t *testing.T) {
	db := setupTestDB(t)

	info, err := Introspect(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("introspect failed: %v", err)
	}

	posts := findTable(t, info, "posts")
	if len(posts.Triggers) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(posts.Triggers))
	}
	trg := posts.Triggers[0]
	if trg.Name != "trg_posts_audit" {
		t.Errorf("expected trg_posts_audit, got %s", trg.Name)
	}
	if trg.Timing != "after" || trg.Event != "insert" {
		t.Errorf("expected after/insert, got %s/%s", trg.Timing, trg.Event)
	}
}

func TestIntrospectViews(t *testing.T) {
	db := setupTestDB(t)

	info, err := Introspect(context.Background(), db, "main")
	if err != nil {
		t.Fatalf("introspect failed: %v", err)
	}

	if info.Views[0].Name != "user_emails" {
		t.Errorf("expected view user_emails, got %s", info.Views[0].Name)
	}
	if info.Views[0].Type != ObjectView {
		t.Errorf("expected view type, got %s", info.Views[0].Type)
	}
	// Advisory row counts are for tables only.
	if info.Views[0].RowCount != nil {
		t.Error("views should not carry row counts")
	}
}

func TestIntrospectAll(t *testing.T) {
	db := setupTestDB(t)

	snap, err := IntrospectAll(context.Background(), db, "introspect.db")
	if err != nil {
		t.Fatalf("introspect all failed: %v", err)
	}

	if snap.Name != "introspect.db" {
		t.Errorf("expected snapshot name introspect.db, got %s", snap.Name)
	}
	if len(snap.Schemas) != 1 {
		t.Fatalf("expected 1 schema, got %d", len(snap.Schemas))
	}
	if snap.Schemas[0].Name != "main" {
		t.Errorf("expected schema main, got %s", snap.Schemas[0].Name)
	}
}

func TestParseTriggerClause(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		timing string
		event  string
	}{
		{"before update", "CREATE TRIGGER t BEFORE UPDATE ON x BEGIN SELECT 1; END", "before", "update"},
		{"after delete", "CREATE TRIGGER t AFTER DELETE ON x BEGIN SELECT 1; END", "after", "delete"},
		{"instead of insert", "CREATE TRIGGER t INSTEAD OF INSERT ON v BEGIN SELECT 1; END", "instead of", "insert"},
		{"implicit timing", "CREATE TRIGGER t INSERT ON x BEGIN SELECT 1; END", "after", "insert"},
		{"lowercase source", "create trigger t before insert on x begin select 1; end", "before", "insert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timing, event := parseTriggerClause(tt.sql)
			if timing != tt.timing || event != tt.event {
				t.Errorf("parseTriggerClause = %s/%s, want %s/%s", timing, event, tt.timing, tt.event)
			}
		})
	}
}
