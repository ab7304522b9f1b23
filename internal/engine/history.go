package engine

import (
	"context"
	"fmt"

	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/store"
)

// recordHistory appends result and trims the history to the limit.
func (e *Engine) recordHistory(ctx context.Context, result model.SyncResult) error {
	if _, err := e.store.Put(ctx, store.CollectionSyncHistory, result); err != nil {
		return fmt.Errorf("record sync history: %w", err)
	}

	recs, err := e.store.GetAll(ctx, store.CollectionSyncHistory)
	if err != nil {
		return fmt.Errorf("trim sync history: %w", err)
	}
	// Records are oldest first.
	for i := 0; i < len(recs)-e.historyLimit; i++ {
		if err := e.store.Delete(ctx, store.CollectionSyncHistory, recs[i].Key); err != nil {
			return fmt.Errorf("trim sync history: %w", err)
		}
	}
	return nil
}

// History returns recorded results, most recent first.
func (e *Engine) History(ctx context.Context) ([]model.SyncResult, error) {
	results, err := store.AllAs[model.SyncResult](ctx, e.store, store.CollectionSyncHistory)
	if err != nil {
		return nil, fmt.Errorf("read sync history: %w", err)
	}
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// ReplaceHistory swaps the history for results, given most recent first.
// Results beyond the history limit are dropped.
func (e *Engine) ReplaceHistory(ctx context.Context, results []model.SyncResult) error {
	if len(results) > e.historyLimit {
		results = results[:e.historyLimit]
	}
	values := make([]any, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].ID == "" {
			return fmt.Errorf("replace sync history: result %d has no id", i)
		}
		values = append(values, results[i])
	}
	if err := e.store.Replace(ctx, store.CollectionSyncHistory, values); err != nil {
		return fmt.Errorf("replace sync history: %w", err)
	}
	return nil
}

// ClearHistory removes every recorded result.
func (e *Engine) ClearHistory(ctx context.Context) error {
	if err := e.store.Clear(ctx, store.CollectionSyncHistory); err != nil {
		return fmt.Errorf("clear sync history: %w", err)
	}
	return nil
}
