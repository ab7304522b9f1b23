package offline

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/learnsync/internal/store"
)

// Asset is cached binary content addressed by URL.
type Asset struct {
	URL      string    `json:"url"`
	Data     []byte    `json:"data"`
	Size     int       `json:"size"`
	CachedAt time.Time `json:"cachedAt"`
}

// CacheAsset stores data under url, replacing earlier content.
// It fails with store.ErrStorageQuotaExceeded when the byte budget is spent.
func (s *Service) CacheAsset(ctx context.Context, url string, data []byte) error {
	rt, err := s.ready()
	if err != nil {
		return err
	}
	a := Asset{URL: url, Data: data, Size: len(data), CachedAt: s.now().UTC()}
	if _, err := rt.store.Put(ctx, store.CollectionOfflineContent, a); err != nil {
		return fmt.Errorf("cache asset %s: %w", url, err)
	}
	return nil
}

// GetCachedAsset returns the content cached under url.
func (s *Service) GetCachedAsset(ctx context.Context, url string) ([]byte, bool, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, false, err
	}
	a, ok, err := store.GetAs[Asset](ctx, rt.store, store.CollectionOfflineContent, url)
	if err != nil {
		return nil, false, fmt.Errorf("get cached asset %s: %w", url, err)
	}
	if !ok {
		return nil, false, nil
	}
	return a.Data, true, nil
}
