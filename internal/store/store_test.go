package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNew_NoIOUntilInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazy.db")

	s := New(path)
	if s.Initialized() {
		t.Fatal("store reports initialized before Init")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("database file exists before Init: %v", err)
	}
}

func TestInit_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s := New(path)
	for i := 0; i < 3; i++ {
		if err := s.Init(ctx); err != nil {
			t.Fatalf("Init() iteration %d failed: %v", i, err)
		}
	}
	mustPut(t, s, CollectionCourses, map[string]any{"id": "c1", "title": "Go"})
	s.Close()

	// Reopening never drops data.
	for i := 0; i < 3; i++ {
		s2, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		n, err := s2.Count(ctx, CollectionCourses)
		if err != nil {
			t.Fatalf("Count() failed: %v", err)
		}
		if n != 1 {
			t.Errorf("Count() = %d after reopen, want 1", n)
		}
		s2.Close()
	}
}

func TestInit_RegistersCollections(t *testing.T) {
	s := createTestStore(t)

	got, err := s.RegisteredCollections(context.Background())
	if err != nil {
		t.Fatalf("RegisteredCollections() failed: %v", err)
	}
	want := []string{
		"conflicts", "courses", "lessons", "offlineContent",
		"progress", "syncHistory", "syncQueue",
	}
	if !equalStrings(got, want) {
		t.Errorf("RegisteredCollections() = %v, want %v", got, want)
	}
}

func TestInit_AddsNewCollectionToExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	mustPut(t, s1, CollectionCourses, map[string]any{"id": "c1"})
	s1.Close()

	extra := Collection{Name: "badges", KeyPath: "id", Indexes: map[string]string{"earnedAt": "earnedAt"}}
	s2, err := Open(path, WithCollections(append(DefaultCollections, extra)...))
	if err != nil {
		t.Fatalf("Open() with extra collection failed: %v", err)
	}
	defer s2.Close()

	mustPut(t, s2, "badges", map[string]any{"id": "b1", "earnedAt": "2025-01-01T00:00:00Z"})
	if n, _ := s2.Count(ctx, CollectionCourses); n != 1 {
		t.Errorf("existing collection lost data: count = %d", n)
	}
}

func TestInit_RejectsInvalidCollection(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "test.db"),
		WithCollections(Collection{Name: "bad name", KeyPath: "id"}))

	if err := s.Init(context.Background()); err == nil {
		t.Fatal("Init() accepted a collection name with a space")
	}
}

func TestSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigrateToV2_RekeysLessons(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	// A lesson written before lessons were scoped to their course.
	if _, err := s.db.Exec(`
		INSERT INTO records (collection, key, value, seq, size, updated_at)
		VALUES ('lessons', 'l1', '{"id":"l1","courseId":"c1"}', 1, 29, '2025-01-01T00:00:00Z')
	`); err != nil {
		t.Fatalf("insert legacy lesson: %v", err)
	}
	if _, err := s.db.Exec("UPDATE collections SET key_path = 'id' WHERE name = 'lessons'"); err != nil {
		t.Fatalf("reset key path: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("reset user_version: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	rec, ok, err := s.Get(ctx, CollectionLessons, "c1:l1")
	if err != nil || !ok {
		t.Fatalf("Get(c1:l1) = %v, %v; want migrated lesson", ok, err)
	}
	var v map[string]any
	if err := rec.Decode(&v); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if v["id"] != "l1" || v["key"] != "c1:l1" {
		t.Errorf("migrated value = %v", v)
	}
	if _, ok, _ := s.Get(ctx, CollectionLessons, "l1"); ok {
		t.Error("legacy key still present")
	}

	var keyPath string
	if err := s.db.QueryRow("SELECT key_path FROM collections WHERE name = 'lessons'").Scan(&keyPath); err != nil {
		t.Fatalf("query key_path: %v", err)
	}
	if keyPath != "key" {
		t.Errorf("key_path = %q, want key", keyPath)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOperations_BeforeInit(t *testing.T) {
	ctx := context.Background()
	s := New(filepath.Join(t.TempDir(), "test.db"))

	if _, err := s.Put(ctx, CollectionCourses, map[string]any{"id": "c1"}); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Put() error = %v, want ErrStorageUnavailable", err)
	}
	if _, _, err := s.Get(ctx, CollectionCourses, "c1"); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Get() error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := s.GetAll(ctx, CollectionCourses); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("GetAll() error = %v, want ErrStorageUnavailable", err)
	}
	if err := s.Delete(ctx, CollectionCourses, "c1"); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Delete() error = %v, want ErrStorageUnavailable", err)
	}
	if err := s.Clear(ctx, CollectionCourses); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Clear() error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := s.Usage(ctx); !IsUnavailable(err) {
		t.Errorf("Usage() error = %v, want ErrStorageUnavailable", err)
	}
}

func TestOperations_AfterClose(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
	if _, err := s.Count(ctx, CollectionCourses); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Count() after Close error = %v, want ErrStorageUnavailable", err)
	}
}
