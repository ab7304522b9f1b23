package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/queue"
	"github.com/roach88/learnsync/internal/remote"
	"github.com/roach88/learnsync/internal/store"
)

// LocalApplier writes a resolved payload into the local data it belongs to
// (progress, notes, ...). Queue bookkeeping is not its concern.
type LocalApplier interface {
	ApplyLocal(ctx context.Context, item model.SyncItem) error
}

// LocalApplierFunc adapts a function to LocalApplier.
type LocalApplierFunc func(ctx context.Context, item model.SyncItem) error

// ApplyLocal calls f.
func (f LocalApplierFunc) ApplyLocal(ctx context.Context, item model.SyncItem) error {
	return f(ctx, item)
}

// Resolver applies conflict policies and records every conflict it sees.
type Resolver struct {
	store   *store.Store
	queue   *queue.Manager
	gateway remote.Gateway
	local   LocalApplier
	now     func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocalApplier sets where remote and merged payloads are written locally.
// Without one, local writes are skipped.
func WithLocalApplier(a LocalApplier) Option {
	return func(r *Resolver) {
		r.local = a
	}
}

// WithClock sets the clock used for detection and resolution times.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// New returns a Resolver over the given store, queue and gateway.
func New(s *store.Store, q *queue.Manager, g remote.Gateway, opts ...Option) *Resolver {
	r := &Resolver{
		store:   s,
		queue:   q,
		gateway: g,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve handles a conflict detected during a sync cycle.
//
// With an automatic policy the resolution is carried out and the queue item
// removed. With manual (or the empty policy) the conflict is logged and the
// item left queued. The returned Conflict is always the logged record, also
// when err is a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, policy model.Policy, local, remoteItem model.SyncItem) (model.Conflict, error) {
	policy = policy.OrDefault()
	if !policy.Valid() {
		return model.Conflict{}, fmt.Errorf("%w: %q", ErrInvalidResolution, policy)
	}

	id, err := model.ConflictID(local.ID, remoteItem.Payload)
	if err != nil {
		return model.Conflict{}, fmt.Errorf("resolve: %w", err)
	}

	c := model.Conflict{
		ID:         id,
		ItemID:     local.ID,
		Type:       local.Type,
		LocalItem:  local.Clone(),
		RemoteItem: remoteItem.Clone(),
		Resolution: policy,
		DetectedAt: r.now().UTC(),
	}
	if prev, ok, err := r.Get(ctx, id); err != nil {
		return model.Conflict{}, fmt.Errorf("resolve: %w", err)
	} else if ok {
		c.DetectedAt = prev.DetectedAt
	}

	slog.Info("conflict detected", "conflict", shortID(id), "item", local.ID, "type", local.Type, "policy", policy)

	if policy == model.PolicyManual {
		if err := r.save(ctx, c); err != nil {
			return model.Conflict{}, err
		}
		return c, nil
	}

	return r.settle(ctx, c, policy)
}

// ResolveManually applies resolution to a logged conflict.
func (r *Resolver) ResolveManually(ctx context.Context, conflictID string, resolution model.Policy) (model.Conflict, error) {
	if !resolution.IsAuto() {
		return model.Conflict{}, fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}

	c, ok, err := r.Get(ctx, conflictID)
	if err != nil {
		return model.Conflict{}, fmt.Errorf("resolve manually: %w", err)
	}
	if !ok {
		return model.Conflict{}, fmt.Errorf("%w: %s", ErrConflictNotFound, conflictID)
	}
	if c.Resolved {
		return c, fmt.Errorf("%w: %s", ErrAlreadyResolved, conflictID)
	}

	c.Resolution = resolution
	return r.resettle(ctx, c)
}

// Retry re-runs a failed automatic resolution with its recorded policy.
// Conflicts logged under manual are rejected with ErrInvalidResolution.
func (r *Resolver) Retry(ctx context.Context, c model.Conflict) (model.Conflict, error) {
	if c.Resolved {
		return c, fmt.Errorf("%w: %s", ErrAlreadyResolved, c.ID)
	}
	if !c.Resolution.IsAuto() {
		return c, fmt.Errorf("%w: %q", ErrInvalidResolution, c.Resolution)
	}
	slog.Info("conflict resolution retry", "conflict", shortID(c.ID), "item", c.ItemID, "policy", c.Resolution)
	return r.resettle(ctx, c)
}

// resettle settles a logged conflict against the current queued copy of its
// item; retries may have bumped its version.
func (r *Resolver) resettle(ctx context.Context, c model.Conflict) (model.Conflict, error) {
	if current, ok, err := r.queue.Get(ctx, c.ItemID); err != nil {
		return model.Conflict{}, fmt.Errorf("resolve %s: %w", shortID(c.ID), err)
	} else if ok {
		c.LocalItem = current
	}
	return r.settle(ctx, c, c.Resolution)
}

// settle carries out an automatic policy and logs the outcome.
func (r *Resolver) settle(ctx context.Context, c model.Conflict, policy model.Policy) (model.Conflict, error) {
	if err := r.apply(ctx, policy, c.LocalItem, c.RemoteItem); err != nil {
		c.Resolved = false
		c.ResolvedAt = nil
		c.Error = err.Error()
		if serr := r.save(ctx, c); serr != nil {
			return c, errors.Join(err, serr)
		}
		slog.Warn("conflict resolution failed", "conflict", shortID(c.ID), "item", c.ItemID, "policy", policy, "error", err)
		return c, &ResolutionError{ConflictID: c.ID, ItemID: c.ItemID, Policy: policy, Err: err}
	}

	now := r.now().UTC()
	c.Resolved = true
	c.ResolvedAt = &now
	c.Error = ""
	if err := r.save(ctx, c); err != nil {
		return c, err
	}
	slog.Info("conflict resolved", "conflict", shortID(c.ID), "item", c.ItemID, "policy", policy)
	return c, nil
}

// apply performs one policy. The queue item is removed last, only after
// every other effect succeeded.
func (r *Resolver) apply(ctx context.Context, policy model.Policy, local, remoteItem model.SyncItem) error {
	switch policy {
	case model.PolicyLocal:
		item := local.Clone()
		item.ConflictResolution = model.PolicyLocal
		if err := r.push(ctx, item); err != nil {
			return err
		}

	case model.PolicyRemote:
		item := local.Clone()
		item.Payload = remoteItem.Payload.Clone()
		item.ConflictResolution = model.PolicyRemote
		if err := r.applyLocal(ctx, item); err != nil {
			return err
		}

	case model.PolicyMerge:
		item := local.Clone()
		item.Payload = model.MergeShallow(remoteItem.Payload, local.Payload)
		item.ConflictResolution = model.PolicyMerge
		if err := r.push(ctx, item); err != nil {
			return err
		}
		if err := r.applyLocal(ctx, item); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %q", ErrInvalidResolution, policy)
	}

	if err := r.queue.Remove(ctx, local.ID); err != nil {
		return fmt.Errorf("remove resolved item: %w", err)
	}
	return nil
}

// push overwrites the remote record with item.
func (r *Resolver) push(ctx context.Context, item model.SyncItem) error {
	out := r.gateway.Apply(ctx, item.Type, item)
	switch out.Kind {
	case remote.OutcomeApplied:
		return nil
	case remote.OutcomeConflict:
		return fmt.Errorf("remote rejected %s overwrite of item %s", item.ConflictResolution, item.ID)
	default:
		return out.Err(item.Type, item.ID)
	}
}

func (r *Resolver) applyLocal(ctx context.Context, item model.SyncItem) error {
	if r.local == nil {
		return nil
	}
	if err := r.local.ApplyLocal(ctx, item); err != nil {
		return fmt.Errorf("apply locally: %w", err)
	}
	return nil
}

func (r *Resolver) save(ctx context.Context, c model.Conflict) error {
	if _, err := r.store.Put(ctx, store.CollectionConflicts, c); err != nil {
		return fmt.Errorf("save conflict %s: %w", shortID(c.ID), err)
	}
	return nil
}
