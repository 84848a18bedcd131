package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoCodeAlone/schemaforge/schema"
)

func sampleSpec(table string) schema.Spec {
	return schema.Spec{
		Table: table,
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeIncrements},
			{Name: "title", Type: schema.TypeString},
		},
	}
}

func createRecord(table string) MigrationRecord {
	return MigrationRecord{
		Name:      "0001_create_" + table + "_table",
		ClassName: "CreatePostsTable",
		Path:      "out/0001_create_" + table + "_table.json",
		Spec:      sampleSpec(table),
		IsCreate:  true,
	}
}

func alterRecord(table string, seq string) MigrationRecord {
	return MigrationRecord{
		Name: seq + "_alter_" + table + "_table",
		Path: "out/" + seq + "_alter_" + table + "_table.json",
		Spec: sampleSpec(table),
	}
}

func newFileStore(t *testing.T) *FileHistoryStore {
	t.Helper()
	return NewFileHistoryStore(filepath.Join(t.TempDir(), "state", "history.json"))
}

func TestFileHistoryStore_MissingFileIsEmpty(t *testing.T) {
	s := newFileStore(t)
	all, err := s.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty history, got %d entries", len(all))
	}
	if _, err := s.Get(context.Background(), "posts"); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("Get on empty store: expected ErrTableNotFound, got %v", err)
	}
}

func TestFileHistoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	rec := createRecord("posts")
	if err := s.Add(ctx, TableHistory{Table: "posts", Model: "Post", Source: "specs/posts.yaml"}, &rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.AddMigration(ctx, "posts", alterRecord("posts", "0002")); err != nil {
		t.Fatalf("AddMigration: %v", err)
	}

	// A second store instance sees the same file content.
	reopened := NewFileHistoryStore(s.Path())
	h, err := reopened.Get(ctx, "posts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h.Model != "Post" || h.Source != "specs/posts.yaml" {
		t.Errorf("history header mismatch: %+v", h)
	}
	if len(h.Migrations) != 2 {
		t.Fatalf("expected 2 records, got %d", len(h.Migrations))
	}
	if latest, _ := h.Latest(); latest.Name != "0002_alter_posts_table" {
		t.Errorf("Latest = %s", latest.Name)
	}

	updated := alterRecord("posts", "0002")
	updated.Spec.Fields = append(updated.Spec.Fields, schema.Field{Name: "body", Type: schema.TypeText})
	if err := s.UpdateMigration(ctx, "posts", updated); err != nil {
		t.Fatalf("UpdateMigration: %v", err)
	}
	h, _ = s.Get(ctx, "posts")
	if got := len(h.Migrations[1].Spec.Fields); got != 3 {
		t.Errorf("updated record has %d fields, want 3", got)
	}

	if err := s.ForgetMigration(ctx, "posts", "0002_alter_posts_table"); err != nil {
		t.Fatalf("ForgetMigration: %v", err)
	}
	h, _ = s.Get(ctx, "posts")
	if len(h.Migrations) != 1 || !h.Migrations[0].IsCreate {
		t.Errorf("expected only the create record to remain, got %+v", h.Migrations)
	}

	if err := s.Forget(ctx, "posts"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	all, _ := s.All(ctx)
	if len(all) != 0 {
		t.Errorf("expected empty store after Forget, got %d", len(all))
	}
}

func TestFileHistoryStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	rec := createRecord("posts")
	if err := s.Add(ctx, TableHistory{Table: "posts"}, &rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"duplicate table", func() error { return s.Add(ctx, TableHistory{Table: "posts"}, nil) }, ErrDuplicate},
		{"append to unknown table", func() error { return s.AddMigration(ctx, "tags", alterRecord("tags", "0002")) }, ErrTableNotFound},
		{"duplicate record name", func() error { return s.AddMigration(ctx, "posts", createRecord("posts")) }, ErrDuplicate},
		{"update missing record", func() error { return s.UpdateMigration(ctx, "posts", alterRecord("posts", "0009")) }, ErrRecordNotFound},
		{"forget missing record", func() error { return s.ForgetMigration(ctx, "posts", "nope") }, ErrRecordNotFound},
		{"forget missing table", func() error { return s.Forget(ctx, "tags") }, ErrTableNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var se *StateError
			if !errors.As(err, &se) || se.Path != s.Path() {
				t.Errorf("expected StateError carrying %s, got %#v", s.Path(), err)
			}
		})
	}
}

func TestFileHistoryStore_SecondCreateRejected(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	rec := createRecord("posts")
	if err := s.Add(ctx, TableHistory{Table: "posts"}, &rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	second := createRecord("posts")
	second.Name = "0002_create_posts_table"
	if err := s.AddMigration(ctx, "posts", second); err == nil {
		t.Fatal("expected a second create record to be rejected")
	}
	h, _ := s.Get(ctx, "posts")
	if len(h.Migrations) != 1 {
		t.Errorf("failed mutation must not be persisted, got %d records", len(h.Migrations))
	}
}

func TestFileHistoryStore_BaseRecordForgottenLast(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	rec := createRecord("posts")
	if err := s.Add(ctx, TableHistory{Table: "posts"}, &rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.AddMigration(ctx, "posts", alterRecord("posts", "0002")); err != nil {
		t.Fatalf("AddMigration: %v", err)
	}

	if err := s.ForgetMigration(ctx, "posts", rec.Name); !errors.Is(err, ErrBaseRecord) {
		t.Fatalf("expected ErrBaseRecord, got %v", err)
	}
	h, _ := s.Get(ctx, "posts")
	if len(h.Migrations) != 2 || h.Migrations[0].Name != rec.Name {
		t.Fatalf("refused forget must leave history intact, got %+v", h.Migrations)
	}

	if err := s.ForgetMigration(ctx, "posts", "0002_alter_posts_table"); err != nil {
		t.Fatalf("ForgetMigration(alter): %v", err)
	}
	if err := s.ForgetMigration(ctx, "posts", rec.Name); err != nil {
		t.Fatalf("ForgetMigration(base) once alone: %v", err)
	}
	h, _ = s.Get(ctx, "posts")
	if len(h.Migrations) != 0 {
		t.Errorf("expected no records, got %+v", h.Migrations)
	}
}

func TestMemoryHistoryStore_BaseRecordForgottenLast(t *testing.T) {
	ctx := context.Background()
	rec := createRecord("posts")
	s := NewMemoryHistoryStore(TableHistory{
		Table:      "posts",
		Migrations: []MigrationRecord{rec, alterRecord("posts", "0002")},
	})
	if err := s.ForgetMigration(ctx, "posts", rec.Name); !errors.Is(err, ErrBaseRecord) {
		t.Fatalf("expected ErrBaseRecord, got %v", err)
	}
	if s.Writes() != 0 {
		t.Errorf("refused forget counted as a write")
	}
}

func TestFileHistoryStore_CorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", "[{\"table\": "},
		{"wrong shape", `{"table":"posts"}`},
		{"create not first", `[{"table":"posts","migrations":[{"name":"a"},{"name":"b","is_create":true}]}]`},
		{"duplicate table", `[{"table":"posts","migrations":[]},{"table":"posts","migrations":[]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			s := NewFileHistoryStore(path)
			_, err := s.All(context.Background())
			if !errors.Is(err, ErrCorruptHistory) {
				t.Fatalf("expected ErrCorruptHistory, got %v", err)
			}
			if !strings.Contains(err.Error(), path) {
				t.Errorf("error %q should name the file", err)
			}
			// Mutations must not overwrite a corrupt file.
			if err := s.Forget(context.Background(), "posts"); !errors.Is(err, ErrCorruptHistory) {
				t.Errorf("Forget on corrupt file: %v", err)
			}
			data, _ := os.ReadFile(path)
			if string(data) != tt.content {
				t.Error("corrupt file was rewritten")
			}
		})
	}
}

func TestFileHistoryStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	all, err := NewFileHistoryStore(path).All(context.Background())
	if err != nil || len(all) != 0 {
		t.Errorf("All on blank file = %v, %v", all, err)
	}
}

func TestFileHistoryStore_NoTempFilesLeft(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	rec := createRecord("posts")
	if err := s.Add(ctx, TableHistory{Table: "posts"}, &rec); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "history.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("unexpected files in history dir: %v", names)
	}
}

func TestMemoryHistoryStore_IsolatesCopies(t *testing.T) {
	ctx := context.Background()
	rec := createRecord("posts")
	s := NewMemoryHistoryStore()
	if err := s.Add(ctx, TableHistory{Table: "posts"}, &rec); err != nil {
		t.Fatal(err)
	}
	rec.Spec.Fields[1].Name = "mutated"

	h, err := s.Get(ctx, "posts")
	if err != nil {
		t.Fatal(err)
	}
	h.Migrations[0].Spec.Fields[1].Name = "mutated again"

	again, _ := s.Get(ctx, "posts")
	if again.Migrations[0].Spec.Fields[1].Name != "title" {
		t.Errorf("stored record was mutated: %+v", again.Migrations[0].Spec.Fields[1])
	}
	if s.Writes() != 1 {
		t.Errorf("Writes = %d, want 1", s.Writes())
	}
}
