package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestPut_Get(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	key := mustPut(t, s, CollectionCourses, map[string]any{"id": "c1", "title": "Intro to Go"})
	if key != "c1" {
		t.Errorf("Put() key = %q, want c1", key)
	}

	rec, ok, err := s.Get(ctx, CollectionCourses, "c1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !ok {
		t.Fatal("Get() did not find c1")
	}

	var got map[string]any
	if err := rec.Decode(&got); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got["title"] != "Intro to Go" {
		t.Errorf("title = %v, want Intro to Go", got["title"])
	}
	if rec.Size <= 0 {
		t.Errorf("Size = %d, want > 0", rec.Size)
	}
}

func TestGet_Missing(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.Get(context.Background(), CollectionCourses, "nope")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if ok {
		t.Error("Get() found a record that was never written")
	}
}

func TestPut_KeyPath(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		value      any
		wantKey    string
		wantErr    error
	}{
		{"string id", CollectionCourses, map[string]any{"id": "abc"}, "abc", nil},
		{"numeric id", CollectionCourses, map[string]any{"id": 42}, "42", nil},
		{"url key path", CollectionOfflineContent, map[string]any{"url": "https://x/a.png"}, "https://x/a.png", nil},
		{"composite progress key", CollectionProgress, map[string]any{"key": "c1-m1"}, "c1-m1", nil},
		{"raw JSON", CollectionCourses, json.RawMessage(`{"id":"raw"}`), "raw", nil},
		{"missing key", CollectionCourses, map[string]any{"title": "x"}, "", ErrMissingKey},
		{"null key", CollectionCourses, map[string]any{"id": nil}, "", ErrMissingKey},
		{"empty key", CollectionCourses, map[string]any{"id": ""}, "", ErrMissingKey},
		{"unknown collection", "nope", map[string]any{"id": "x"}, "", ErrUnknownCollection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			key, err := s.Put(context.Background(), tt.collection, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Put() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Put() failed: %v", err)
			}
			if key != tt.wantKey {
				t.Errorf("Put() key = %q, want %q", key, tt.wantKey)
			}
		})
	}
}

func TestPut_NonObjectRejected(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.Put(context.Background(), CollectionCourses, []int{1, 2}); err == nil {
		t.Error("Put() accepted a JSON array")
	}
}

func TestGetAll_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for _, id := range []string{"z", "a", "m"} {
		mustPut(t, s, CollectionSyncQueue, map[string]any{"id": id})
	}

	recs, err := s.GetAll(ctx, CollectionSyncQueue)
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if got, want := keys(recs), []string{"z", "a", "m"}; !equalStrings(got, want) {
		t.Errorf("GetAll() keys = %v, want %v", got, want)
	}
}

func TestPut_UpsertKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	mustPut(t, s, CollectionSyncQueue, map[string]any{"id": "first", "version": 1})
	mustPut(t, s, CollectionSyncQueue, map[string]any{"id": "second", "version": 1})
	mustPut(t, s, CollectionSyncQueue, map[string]any{"id": "first", "version": 2})

	recs, err := s.GetAll(ctx, CollectionSyncQueue)
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if got, want := keys(recs), []string{"first", "second"}; !equalStrings(got, want) {
		t.Fatalf("GetAll() keys = %v, want %v", got, want)
	}

	var v struct{ Version int }
	if err := recs[0].Decode(&v); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if v.Version != 2 {
		t.Errorf("version = %d, want 2", v.Version)
	}
}

func TestGetAllByIndex(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	mustPut(t, s, CollectionLessons, map[string]any{"key": "l1", "courseId": "c2"})
	mustPut(t, s, CollectionLessons, map[string]any{"key": "l2", "courseId": "c1"})
	mustPut(t, s, CollectionLessons, map[string]any{"key": "l3", "courseId": "c1"})
	mustPut(t, s, CollectionLessons, map[string]any{"key": "l4", "courseId": "c3"})

	t.Run("only", func(t *testing.T) {
		recs, err := s.GetAllByIndex(ctx, CollectionLessons, "courseId", Only("c1"))
		if err != nil {
			t.Fatalf("GetAllByIndex() failed: %v", err)
		}
		if got, want := keys(recs), []string{"l2", "l3"}; !equalStrings(got, want) {
			t.Errorf("keys = %v, want %v", got, want)
		}
	})

	t.Run("full scan ordered by index then insertion", func(t *testing.T) {
		recs, err := s.GetAllByIndex(ctx, CollectionLessons, "courseId", KeyRange{})
		if err != nil {
			t.Fatalf("GetAllByIndex() failed: %v", err)
		}
		if got, want := keys(recs), []string{"l2", "l3", "l1", "l4"}; !equalStrings(got, want) {
			t.Errorf("keys = %v, want %v", got, want)
		}
	})

	t.Run("bounds", func(t *testing.T) {
		recs, err := s.GetAllByIndex(ctx, CollectionLessons, "courseId", Bound("c2", "c3"))
		if err != nil {
			t.Fatalf("GetAllByIndex() failed: %v", err)
		}
		if got, want := keys(recs), []string{"l1", "l4"}; !equalStrings(got, want) {
			t.Errorf("keys = %v, want %v", got, want)
		}
	})

	t.Run("open lower bound", func(t *testing.T) {
		recs, err := s.GetAllByIndex(ctx, CollectionLessons, "courseId", KeyRange{Lower: "c2", LowerOpen: true})
		if err != nil {
			t.Fatalf("GetAllByIndex() failed: %v", err)
		}
		if got, want := keys(recs), []string{"l4"}; !equalStrings(got, want) {
			t.Errorf("keys = %v, want %v", got, want)
		}
	})

	t.Run("descending", func(t *testing.T) {
		recs, err := s.GetAllByIndex(ctx, CollectionLessons, "courseId", KeyRange{Desc: true})
		if err != nil {
			t.Fatalf("GetAllByIndex() failed: %v", err)
		}
		if got, want := keys(recs), []string{"l4", "l1", "l3", "l2"}; !equalStrings(got, want) {
			t.Errorf("keys = %v, want %v", got, want)
		}
	})
}

func TestGetAllByIndex_Bool(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	mustPut(t, s, CollectionProgress, map[string]any{"key": "a", "synced": true})
	mustPut(t, s, CollectionProgress, map[string]any{"key": "b", "synced": false})
	mustPut(t, s, CollectionProgress, map[string]any{"key": "c", "synced": false})

	recs, err := s.GetAllByIndex(ctx, CollectionProgress, "synced", Only(false))
	if err != nil {
		t.Fatalf("GetAllByIndex() failed: %v", err)
	}
	if got, want := keys(recs), []string{"b", "c"}; !equalStrings(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestGetAllByIndex_UnknownIndex(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetAllByIndex(context.Background(), CollectionLessons, "title", KeyRange{})
	if !errors.Is(err, ErrUnknownIndex) {
		t.Errorf("error = %v, want ErrUnknownIndex", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	mustPut(t, s, CollectionCourses, map[string]any{"id": "c1"})
	for i := 0; i < 2; i++ {
		if err := s.Delete(ctx, CollectionCourses, "c1"); err != nil {
			t.Fatalf("Delete() call %d failed: %v", i, err)
		}
	}
	if _, ok, _ := s.Get(ctx, CollectionCourses, "c1"); ok {
		t.Error("record still present after Delete")
	}
}

func TestClear_OnlyTargetCollection(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	mustPut(t, s, CollectionCourses, map[string]any{"id": "c1"})
	mustPut(t, s, CollectionLessons, map[string]any{"key": "l1", "courseId": "c1"})

	if err := s.Clear(ctx, CollectionCourses); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if n, _ := s.Count(ctx, CollectionCourses); n != 0 {
		t.Errorf("courses count = %d, want 0", n)
	}
	if n, _ := s.Count(ctx, CollectionLessons); n != 1 {
		t.Errorf("lessons count = %d, want 1", n)
	}
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	mustPut(t, s, CollectionSyncQueue, map[string]any{"id": "old"})

	err := s.Replace(ctx, CollectionSyncQueue, []any{
		map[string]any{"id": "n2"},
		map[string]any{"id": "n1"},
	})
	if err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	recs, err := s.GetAll(ctx, CollectionSyncQueue)
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if got, want := keys(recs), []string{"n2", "n1"}; !equalStrings(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestReplace_InvalidValueLeavesCollectionIntact(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	mustPut(t, s, CollectionSyncQueue, map[string]any{"id": "keep"})

	err := s.Replace(ctx, CollectionSyncQueue, []any{
		map[string]any{"id": "ok"},
		map[string]any{"noid": true},
	})
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("Replace() error = %v, want ErrMissingKey", err)
	}

	recs, _ := s.GetAll(ctx, CollectionSyncQueue)
	if got, want := keys(recs), []string{"keep"}; !equalStrings(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
}

func TestUsage_TracksWrites(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if used, err := s.Usage(ctx); err != nil || used != 0 {
		t.Fatalf("Usage() = %d, %v; want 0, nil", used, err)
	}

	mustPut(t, s, CollectionCourses, map[string]any{"id": "c1", "title": "x"})
	used1, _ := s.Usage(ctx)
	if used1 <= 0 {
		t.Fatalf("Usage() = %d after write, want > 0", used1)
	}

	mustPut(t, s, CollectionCourses, map[string]any{"id": "c1", "title": "x"})
	used2, _ := s.Usage(ctx)
	if used2 != used1 {
		t.Errorf("Usage() = %d after identical overwrite, want %d", used2, used1)
	}

	if err := s.Delete(ctx, CollectionCourses, "c1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if used, _ := s.Usage(ctx); used != 0 {
		t.Errorf("Usage() = %d after delete, want 0", used)
	}
}

func TestByteBudget(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithByteBudget(64))

	mustPut(t, s, CollectionCourses, map[string]any{"id": "c1"})

	big := map[string]any{"id": "c2", "blob": string(make([]byte, 128))}
	_, err := s.Put(ctx, CollectionCourses, big)
	if !errors.Is(err, ErrStorageQuotaExceeded) {
		t.Fatalf("Put() error = %v, want ErrStorageQuotaExceeded", err)
	}

	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("error is not a *QuotaError: %T", err)
	}
	if qe.Budget != 64 {
		t.Errorf("QuotaError.Budget = %d, want 64", qe.Budget)
	}

	// The rejected write must not be stored.
	if _, ok, _ := s.Get(ctx, CollectionCourses, "c2"); ok {
		t.Error("rejected record was stored")
	}

	// Shrinking an existing record is always allowed.
	mustPut(t, s, CollectionCourses, map[string]any{"id": "c1"})
}

func TestTypedHelpers(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	type lesson struct {
		Key      string `json:"key"`
		ID       string `json:"id"`
		CourseID string `json:"courseId"`
		Title    string `json:"title"`
	}

	mustPut(t, s, CollectionLessons, lesson{Key: "l1", ID: "l1", CourseID: "c1", Title: "One"})
	mustPut(t, s, CollectionLessons, lesson{Key: "l2", ID: "l2", CourseID: "c2", Title: "Two"})

	got, ok, err := GetAs[lesson](ctx, s, CollectionLessons, "l2")
	if err != nil || !ok {
		t.Fatalf("GetAs() = %v, %v", ok, err)
	}
	if got.Title != "Two" {
		t.Errorf("Title = %q, want Two", got.Title)
	}

	all, err := AllAs[lesson](ctx, s, CollectionLessons)
	if err != nil {
		t.Fatalf("AllAs() failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "l1" {
		t.Errorf("AllAs() = %+v", all)
	}

	byCourse, err := AllByIndexAs[lesson](ctx, s, CollectionLessons, "courseId", Only("c1"))
	if err != nil {
		t.Fatalf("AllByIndexAs() failed: %v", err)
	}
	if len(byCourse) != 1 || byCourse[0].ID != "l1" {
		t.Errorf("AllByIndexAs() = %+v", byCourse)
	}

	_, ok, err = GetAs[lesson](ctx, s, CollectionLessons, "missing")
	if err != nil || ok {
		t.Errorf("GetAs(missing) = %v, %v; want false, nil", ok, err)
	}
}
