package conflict

import (
	"context"
	"fmt"

	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/store"
)

// Get returns the logged conflict with the given id.
func (r *Resolver) Get(ctx context.Context, id string) (model.Conflict, bool, error) {
	c, ok, err := store.GetAs[model.Conflict](ctx, r.store, store.CollectionConflicts, id)
	if err != nil {
		return model.Conflict{}, false, fmt.Errorf("get conflict: %w", err)
	}
	return c, ok, nil
}

// List returns logged conflicts in detection order, optionally only the
// unresolved ones.
func (r *Resolver) List(ctx context.Context, unresolvedOnly bool) ([]model.Conflict, error) {
	var (
		out []model.Conflict
		err error
	)
	if unresolvedOnly {
		out, err = store.AllByIndexAs[model.Conflict](ctx, r.store, store.CollectionConflicts, "resolved", store.Only(false))
	} else {
		out, err = store.AllAs[model.Conflict](ctx, r.store, store.CollectionConflicts)
	}
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return out, nil
}

// Pending returns the unresolved conflicts raised by a queue item.
func (r *Resolver) Pending(ctx context.Context, itemID string) ([]model.Conflict, error) {
	all, err := store.AllByIndexAs[model.Conflict](ctx, r.store, store.CollectionConflicts, "itemId", store.Only(itemID))
	if err != nil {
		return nil, fmt.Errorf("pending conflicts for %s: %w", itemID, err)
	}
	out := []model.Conflict{}
	for _, c := range all {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out, nil
}

// Clear empties the conflict log.
func (r *Resolver) Clear(ctx context.Context) error {
	if err := r.store.Clear(ctx, store.CollectionConflicts); err != nil {
		return fmt.Errorf("clear conflicts: %w", err)
	}
	return nil
}

// Replace swaps the conflict log for conflicts, in the order given.
func (r *Resolver) Replace(ctx context.Context, conflicts []model.Conflict) error {
	values := make([]any, len(conflicts))
	for i, c := range conflicts {
		if !c.Resolution.Valid() {
			return fmt.Errorf("replace conflicts: %w: %q", ErrInvalidResolution, c.Resolution)
		}
		values[i] = c
	}
	if err := r.store.Replace(ctx, store.CollectionConflicts, values); err != nil {
		return fmt.Errorf("replace conflicts: %w", err)
	}
	return nil
}
