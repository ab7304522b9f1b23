package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/learnsync/internal/conflict"
	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/queue"
	"github.com/roach88/learnsync/internal/remote"
	"github.com/roach88/learnsync/internal/store"
)

// DefaultHistoryLimit is the default number of results kept in history.
const DefaultHistoryLimit = 50

// Engine is the sync orchestrator.
//
// Thread-safety model:
//   - RunCycle(): safe from any goroutine; overlapping calls are rejected
//     with ErrSyncInProgress unless forced
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Subscribe(): safe from any goroutine
type Engine struct {
	store    *store.Store
	queue    *queue.Manager
	resolver *conflict.Resolver
	gateway  remote.Gateway
	requests *requestQueue
	ids      queue.IDGenerator
	now      func() time.Time

	historyLimit int
	defaults     SyncOptions

	syncing atomic.Bool
	cycles  atomic.Int64

	mu        sync.Mutex
	lastCycle *Cycle
	subs      []subscriber
	nextSub   int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithHistoryLimit bounds the sync history. Values below 1 keep the default.
func WithHistoryLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// WithClock sets the clock used for result timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithResultIDs sets the generator for history ids.
// Default: queue.UUIDv7Generator.
func WithResultIDs(g queue.IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithDefaultOptions sets the options used by requests that carry none,
// such as scheduled syncs.
func WithDefaultOptions(o SyncOptions) EngineOption {
	return func(e *Engine) {
		e.defaults = o
	}
}

// New creates an Engine.
//
// The store holds the sync history; the queue, resolver and gateway are
// the collaborators of every cycle.
func New(
	s *store.Store,
	q *queue.Manager,
	r *conflict.Resolver,
	g remote.Gateway,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		store:        s,
		queue:        q,
		resolver:     r,
		gateway:      g,
		requests:     newRequestQueue(),
		ids:          queue.UUIDv7Generator{},
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Syncing reports whether a cycle is running.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// State returns StateSyncing while a cycle runs and StateIdle otherwise.
func (e *Engine) State() State {
	if e.syncing.Load() {
		return StateSyncing
	}
	return StateIdle
}

// LastCycle returns the item state machines of the most recent cycle that
// had work to do, or nil.
func (e *Engine) LastCycle() *Cycle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCycle
}

// RunCycle performs one reconciliation cycle.
//
// Per-item failures never surface as errors: they are retried, then reported
// in the result's Errors while the item stays queued. Conflicts are returned
// as data. The error return is reserved for preconditions: ErrSyncInProgress
// and a store that cannot be read.
func (e *Engine) RunCycle(ctx context.Context, opts SyncOptions) (model.SyncResult, error) {
	opts = opts.withDefaults()

	owner := e.syncing.CompareAndSwap(false, true)
	if !owner && !opts.ForceSync {
		return model.SyncResult{}, ErrSyncInProgress
	}
	if owner {
		defer e.syncing.Store(false)
	}

	seq := e.cycles.Add(1)
	start := e.now().UTC()
	e.notify(StateChange{From: StateIdle, To: StateSyncing, Cycle: seq})

	result, err := e.runCycle(ctx, seq, start, opts)
	if err != nil {
		e.notify(StateChange{From: StateSyncing, To: StateIdle, Cycle: seq})
		return model.SyncResult{}, err
	}

	e.notify(StateChange{From: StateSyncing, To: StateIdle, Cycle: seq, Result: &result})
	return result, nil
}

func (e *Engine) runCycle(ctx context.Context, seq int64, start time.Time, opts SyncOptions) (model.SyncResult, error) {
	items, err := e.queue.List(ctx)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("snapshot sync queue: %w", err)
	}

	result := model.NewSyncResult(start)
	if len(items) == 0 {
		slog.Debug("sync cycle skipped: queue empty", "cycle", seq)
		return result, nil
	}

	slog.Info("sync cycle starting",
		"cycle", seq,
		"items", len(items),
		"policy", opts.ResolveConflicts,
		"retry_attempts", opts.RetryAttempts,
	)

	cycle := newCycle(seq, items)
	e.mu.Lock()
	e.lastCycle = cycle
	e.mu.Unlock()

	for _, group := range queue.GroupByType(items) {
		e.syncGroup(ctx, cycle, group, opts, &result)
	}

	end := e.now().UTC()
	result.ID = e.ids.Generate()
	result.Success = len(result.Errors) == 0
	result.LastSyncTime = end
	result.DurationMS = end.Sub(start).Milliseconds()

	if err := e.recordHistory(ctx, result); err != nil {
		slog.Error("sync history write failed", "cycle", seq, "error", err)
	}

	slog.Info("sync cycle finished",
		"cycle", seq,
		"success", result.Success,
		"synced", result.SyncedItems,
		"conflicts", len(result.Conflicts),
		"errors", len(result.Errors),
		"duration_ms", result.DurationMS,
	)

	return result, nil
}

// syncGroup processes one type group. A panic or store failure stops this
// group only and is reported in the result.
func (e *Engine) syncGroup(ctx context.Context, c *Cycle, g queue.Group, opts SyncOptions, res *model.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("sync %s group aborted: panic: %v", g.Type, r)
			slog.Error("sync group panicked",
				"cycle", c.Seq,
				"type", g.Type,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res.Errors = append(res.Errors, msg)
		}
	}()

	for _, item := range g.Items {
		if err := e.syncItem(ctx, c, item, opts, res); err != nil {
			slog.Error("sync group aborted",
				"cycle", c.Seq,
				"type", g.Type,
				"item", item.ID,
				"error", err,
			)
			res.Errors = append(res.Errors, fmt.Sprintf("sync %s group aborted at item %s: %v", g.Type, item.ID, err))
			return
		}
	}
}

// storeFailure marks an error that must abort the group instead of being
// retried.
type storeFailure struct{ err error }

func (s *storeFailure) Error() string { return s.err.Error() }
func (s *storeFailure) Unwrap() error { return s.err }

// syncItem drives one item through its state machine.
// Only store failures are returned; everything else lands in res.
func (e *Engine) syncItem(ctx context.Context, c *Cycle, item model.SyncItem, opts SyncOptions, res *model.SyncResult) error {
	pending, err := e.resolver.Pending(ctx, item.ID)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if p.Resolution.OrDefault() == model.PolicyManual {
			slog.Debug("item skipped: unresolved conflict", "cycle", c.Seq, "item", item.ID)
			return c.Transition(item.ID, StateSkipped)
		}
	}
	if len(pending) > 0 {
		return e.retryResolution(ctx, c, pending[len(pending)-1], res)
	}

	policy := opts.policyFor(item)

	op := func() error {
		if err := c.Transition(item.ID, StateAttempting); err != nil {
			return backoff.Permanent(err)
		}

		// The per-item override is a local policy; only the resolver sends
		// it to the remote.
		wire := item.Clone()
		wire.ConflictResolution = ""

		out := e.gateway.Apply(ctx, item.Type, wire)
		switch out.Kind {
		case remote.OutcomeApplied:
			if err := e.queue.Remove(ctx, item.ID); err != nil {
				return backoff.Permanent(&storeFailure{err})
			}
			res.SyncedItems++
			slog.Debug("item applied", "cycle", c.Seq, "item", item.ID, "type", item.Type)
			if err := c.Transition(item.ID, StateApplied); err != nil {
				return backoff.Permanent(err)
			}
			return nil

		case remote.OutcomeConflict:
			if err := c.Transition(item.ID, StateConflicted); err != nil {
				return backoff.Permanent(err)
			}
			conf, err := e.resolver.Resolve(ctx, policy, item, out.Remote)
			if conf.ID != "" {
				res.Conflicts = append(res.Conflicts, conf)
			}
			switch {
			case err == nil:
				return nil
			case conflict.IsResolutionError(err):
				res.Errors = append(res.Errors, err.Error())
				return nil
			default:
				return backoff.Permanent(&storeFailure{err})
			}

		case remote.OutcomeError:
			item.Version++
			if err := e.queue.Update(ctx, item); err != nil {
				return backoff.Permanent(&storeFailure{err})
			}
			c.record(item.ID, item.Version, out.Reason)

			applyErr := out.Err(item.Type, item.ID)
			if item.Version <= opts.RetryAttempts {
				return applyErr
			}
			return backoff.Permanent(e.exhausted(c, item, out.Reason, nil))

		default:
			reason := fmt.Sprintf("gateway returned unknown outcome %s", out.Kind)
			c.record(item.ID, item.Version, reason)
			return backoff.Permanent(e.exhausted(c, item, reason, nil))
		}
	}

	notify := func(err error, wait time.Duration) {
		_ = c.Transition(item.ID, StateRetrying)
		slog.Debug("item retry scheduled",
			"cycle", c.Seq,
			"item", item.ID,
			"version", item.Version,
			"wait", wait,
			"error", err,
		)
	}

	err = backoff.RetryNotify(op, backoff.WithContext(newRetryBackOff(opts.RetryDelay), ctx), notify)

	var (
		sf *storeFailure
		pf *PersistentFailureError
		ae *remote.ApplyError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &sf):
		return sf.err
	case errors.As(err, &pf):
		res.Errors = append(res.Errors, pf.Error())
		return nil
	case errors.As(err, &ae), ctx.Err() != nil:
		// The backoff wait was interrupted; the item stays queued.
		a, _ := c.Attempt(item.ID)
		pf := e.exhausted(c, item, a.Reason, ctx.Err())
		res.Errors = append(res.Errors, pf.Error())
		return nil
	default:
		return err
	}
}

// retryResolution re-runs the failed automatic resolution of pending instead
// of sending the item again. The remote copy logged with the conflict is
// reused.
func (e *Engine) retryResolution(ctx context.Context, c *Cycle, pending model.Conflict, res *model.SyncResult) error {
	if err := c.Transition(pending.ItemID, StateAttempting); err != nil {
		return err
	}
	if err := c.Transition(pending.ItemID, StateConflicted); err != nil {
		return err
	}

	conf, err := e.resolver.Retry(ctx, pending)
	if conf.ID != "" {
		res.Conflicts = append(res.Conflicts, conf)
	}
	switch {
	case err == nil:
		return nil
	case conflict.IsResolutionError(err):
		res.Errors = append(res.Errors, err.Error())
		return nil
	default:
		return err
	}
}

// exhausted marks an item failed and builds its report.
func (e *Engine) exhausted(c *Cycle, item model.SyncItem, reason string, cause error) *PersistentFailureError {
	_ = c.Transition(item.ID, StateFailed)
	a, _ := c.Attempt(item.ID)
	pf := &PersistentFailureError{
		ItemID:   item.ID,
		Type:     item.Type,
		Version:  a.Version,
		Attempts: a.Attempts,
		Reason:   reason,
		Err:      cause,
	}
	slog.Warn("item retry budget exhausted",
		"cycle", c.Seq,
		"item", item.ID,
		"type", item.Type,
		"version", pf.Version,
		"attempts", pf.Attempts,
		"reason", reason,
	)
	return pf
}
