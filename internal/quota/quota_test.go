package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/learnsync/internal/store"
	"github.com/roach88/learnsync/internal/testutil"
)

func TestStorageInfo_Fallback(t *testing.T) {
	ctx := context.Background()
	want := Info{Used: 0, Total: 5 * 1024 * 1024 * 1024, Percentage: 0}

	assert.Equal(t, want, New(nil).StorageInfo(ctx))

	failing := New(EstimatorFunc(func(context.Context) (int64, int64, error) {
		return 0, 0, errors.New("estimate api missing")
	}))
	assert.Equal(t, want, failing.StorageInfo(ctx))

	bogus := New(EstimatorFunc(func(context.Context) (int64, int64, error) {
		return 10, 0, nil
	}))
	assert.Equal(t, want, bogus.StorageInfo(ctx))
}

func TestStorageInfo_Percentage(t *testing.T) {
	m := New(EstimatorFunc(func(context.Context) (int64, int64, error) {
		return 256, 1024, nil
	}))
	info := m.StorageInfo(context.Background())
	assert.Equal(t, int64(256), info.Used)
	assert.Equal(t, int64(1024), info.Total)
	assert.InDelta(t, 25.0, info.Percentage, 1e-9)
}

func TestStoreEstimator(t *testing.T) {
	ctx := context.Background()
	s := testutil.OpenStore(t, store.WithByteBudget(1<<20))

	_, err := s.Put(ctx, store.CollectionOfflineContent, map[string]any{"url": "https://cdn/a.png", "data": "abc"})
	require.NoError(t, err)

	used, total, err := StoreEstimator{Store: s}.Estimate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), total)
	assert.Positive(t, used)

	info := New(StoreEstimator{Store: s}).StorageInfo(ctx)
	assert.Equal(t, used, info.Used)
}

func TestStoreEstimator_NoBudget(t *testing.T) {
	s := testutil.OpenStore(t)

	_, _, err := StoreEstimator{Store: s}.Estimate(context.Background())
	assert.ErrorIs(t, err, ErrNoBudget)
	assert.Equal(t, Fallback(), New(StoreEstimator{Store: s}).StorageInfo(context.Background()))
}

func TestDiskEstimator(t *testing.T) {
	info := New(DiskEstimator{Path: t.TempDir()}).StorageInfo(context.Background())
	assert.Positive(t, info.Total)
	assert.GreaterOrEqual(t, info.Percentage, 0.0)
	assert.LessOrEqual(t, info.Percentage, 100.0)
}

func TestDiskEstimator_MissingPath(t *testing.T) {
	_, _, err := DiskEstimator{Path: "/does/not/exist/anywhere"}.Estimate(context.Background())
	assert.Error(t, err)
}
