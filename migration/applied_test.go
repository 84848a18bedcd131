package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLog(t *testing.T) *SQLAppliedLog {
	t.Helper()
	l, err := NewSQLAppliedLog(newTestDB(t), DialectSQLite, "", "")
	if err != nil {
		t.Fatalf("NewSQLAppliedLog: %v", err)
	}
	if err := l.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return l
}

func TestSQLAppliedLog_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	ok, err := l.IsApplied(ctx, "0001_create_posts_table")
	if err != nil {
		t.Fatalf("IsApplied: %v", err)
	}
	if ok {
		t.Fatal("empty log reports a migration as applied")
	}

	batch, err := l.Record(ctx, "0001_create_posts_table", "0001_create_tags_table")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if batch != 1 {
		t.Errorf("first batch = %d, want 1", batch)
	}
	batch, err = l.Record(ctx, "0001_create_posts_table", "0002_alter_posts_table")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if batch != 2 {
		t.Errorf("second batch = %d, want 2", batch)
	}
	batch, err = l.Record(ctx, "0002_alter_posts_table")
	if err != nil || batch != 0 {
		t.Errorf("re-recording known names: batch=%d err=%v", batch, err)
	}

	applied, err := l.Applied(ctx)
	if err != nil {
		t.Fatalf("Applied: %v", err)
	}
	want := []AppliedMigration{
		{Name: "0001_create_posts_table", Batch: 1},
		{Name: "0001_create_tags_table", Batch: 1},
		{Name: "0002_alter_posts_table", Batch: 2},
	}
	if len(applied) != len(want) {
		t.Fatalf("Applied = %+v", applied)
	}
	for i := range want {
		if applied[i] != want[i] {
			t.Errorf("Applied[%d] = %+v, want %+v", i, applied[i], want[i])
		}
	}

	ok, err = l.IsApplied(ctx, "0002_alter_posts_table")
	if err != nil || !ok {
		t.Errorf("IsApplied after Record = %v, %v", ok, err)
	}
}

func TestSQLAppliedLog_EnsureTableIsIdempotent(t *testing.T) {
	l := newTestLog(t)
	if err := l.EnsureTable(context.Background()); err != nil {
		t.Fatalf("second EnsureTable: %v", err)
	}
}

func TestSQLAppliedLog_CustomTableAndColumn(t *testing.T) {
	ctx := context.Background()
	l, err := NewSQLAppliedLog(newTestDB(t), DialectSQLite, "schema_log", "name")
	if err != nil {
		t.Fatalf("NewSQLAppliedLog: %v", err)
	}
	if err := l.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if _, err := l.Record(ctx, "0001_create_posts_table"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if ok, _ := l.IsApplied(ctx, "0001_create_posts_table"); !ok {
		t.Error("custom column not consulted")
	}
}

func TestSQLAppliedLog_MissingTable(t *testing.T) {
	l, err := NewSQLAppliedLog(newTestDB(t), DialectSQLite, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.IsApplied(context.Background(), "x"); err == nil {
		t.Error("expected an error when the log table does not exist")
	}
}

func TestNewSQLAppliedLog_Rejects(t *testing.T) {
	db := newTestDB(t)
	if _, err := NewSQLAppliedLog(db, "oracle", "", ""); err == nil {
		t.Error("expected unsupported dialect error")
	}
	if _, err := NewSQLAppliedLog(db, DialectSQLite, "migrations; DROP TABLE x", ""); err == nil {
		t.Error("expected invalid identifier error")
	}
}

func TestOpenAppliedLog_InvalidMySQLDSN(t *testing.T) {
	_, err := OpenAppliedLog(DialectMySQL, "not a dsn", "", "")
	if err == nil || !strings.Contains(err.Error(), "mysql dsn") {
		t.Errorf("expected mysql dsn error, got %v", err)
	}
}

func TestSQLAppliedLog_Placeholders(t *testing.T) {
	pg := &SQLAppliedLog{dialect: DialectPostgres}
	my := &SQLAppliedLog{dialect: DialectMySQL}
	if pg.placeholder(2) != "$2" || my.placeholder(2) != "?" {
		t.Errorf("placeholders: pg=%s mysql=%s", pg.placeholder(2), my.placeholder(2))
	}
	if my.quote("migrations") != "`migrations`" || pg.quote("migrations") != `"migrations"` {
		t.Errorf("quoting: pg=%s mysql=%s", pg.quote("migrations"), my.quote("migrations"))
	}
}

func TestAppliedSet(t *testing.T) {
	s := NewAppliedSet("a")
	if ok, _ := s.IsApplied(context.Background(), "a"); !ok {
		t.Error("a should be applied")
	}
	if ok, _ := s.IsApplied(context.Background(), "b"); ok {
		t.Error("b should not be applied")
	}
}
