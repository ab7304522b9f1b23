package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/learnsync/internal/store"
)

// OpenStore opens a fresh file-backed store in t.TempDir and closes it when
// the test ends.
func OpenStore(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "learnsync.db"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
