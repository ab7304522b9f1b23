package offline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/learnsync/internal/engine"
	"github.com/roach88/learnsync/internal/model"
)

// SyncData runs one reconciliation cycle. Zero fields of opts take the
// Service's sync defaults.
//
// Per-item failures and conflicts are reported in the result; the error
// return is reserved for ErrNotInitialized, engine.ErrSyncInProgress and an
// unreadable store.
func (s *Service) SyncData(ctx context.Context, opts engine.SyncOptions) (model.SyncResult, error) {
	rt, err := s.ready()
	if err != nil {
		return model.SyncResult{}, err
	}

	before, err := queuedProgress(ctx, rt)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("sync data: %w", err)
	}

	res, err := rt.engine.RunCycle(ctx, s.fill(opts))
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("sync data: %w", err)
	}

	if err := markSynced(ctx, rt, before); err != nil {
		slog.Error("progress sync flags not updated", "error", err)
	}
	return res, nil
}

func (s *Service) fill(o engine.SyncOptions) engine.SyncOptions {
	if o.ResolveConflicts == "" {
		o.ResolveConflicts = s.defaults.ResolveConflicts
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = s.defaults.RetryAttempts
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = s.defaults.RetryDelay
	}
	return o
}

// queuedProgress maps queued progress item ids to their progress keys.
func queuedProgress(ctx context.Context, rt *components) (map[string]string, error) {
	items, err := rt.queue.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, it := range items {
		if it.Type == model.TypeProgress {
			out[it.ID] = it.RecordKey()
		}
	}
	return out, nil
}

// AddToSyncQueue enqueues a caller-built item; id, timestamp and version
// are filled in when absent.
func (s *Service) AddToSyncQueue(ctx context.Context, item model.SyncItem) (model.SyncItem, error) {
	rt, err := s.ready()
	if err != nil {
		return model.SyncItem{}, err
	}
	return rt.queue.AddItem(ctx, item)
}

// SyncQueue returns the queued items in enqueue order.
func (s *Service) SyncQueue(ctx context.Context) ([]model.SyncItem, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, err
	}
	return rt.queue.List(ctx)
}

// ClearSyncQueue drops every queued item.
func (s *Service) ClearSyncQueue(ctx context.Context) error {
	rt, err := s.ready()
	if err != nil {
		return err
	}
	return rt.queue.Clear(ctx)
}

// Conflicts returns the conflict log, optionally only unresolved entries.
func (s *Service) Conflicts(ctx context.Context, unresolvedOnly bool) ([]model.Conflict, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, err
	}
	return rt.resolver.List(ctx, unresolvedOnly)
}

// ResolveConflict settles a logged conflict with local, remote or merge.
func (s *Service) ResolveConflict(ctx context.Context, conflictID string, resolution model.Policy) (model.Conflict, error) {
	rt, err := s.ready()
	if err != nil {
		return model.Conflict{}, err
	}
	return rt.resolver.ResolveManually(ctx, conflictID, resolution)
}

// SyncHistory returns recorded sync results, most recent first.
func (s *Service) SyncHistory(ctx context.Context) ([]model.SyncResult, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, err
	}
	return rt.engine.History(ctx)
}
