package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/learnsync/internal/engine"
	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/offline"
	"github.com/roach88/learnsync/internal/remote"
	"github.com/roach88/learnsync/internal/testutil"
)

// Harness executes one scenario against a fresh service.
type Harness struct {
	svc     *offline.Service
	gateway *remote.MemoryGateway
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh in-memory database, a frozen clock, sequential
// item ids (item-1, item-2, ...) and no retry delay. The error return is
// reserved for failures of the harness itself; failed expectations and
// assertions are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	clock := testutil.NewDeterministicClockAt(testutil.Epoch, 0)
	gw := remote.NewMemoryGateway().WithClock(clock.Now)

	policy := model.Policy(scenario.Options.Policy)
	svc := offline.New(":memory:",
		offline.WithGateway(gw),
		offline.WithClock(clock.Now),
		offline.WithIDGenerator(testutil.NewSequenceGenerator("item")),
		offline.WithResultIDs(testutil.NewSequenceGenerator("sync")),
		offline.WithSyncDefaults(engine.SyncOptions{
			ResolveConflicts: policy,
			RetryAttempts:    scenario.Options.RetryAttempts,
			RetryDelay:       -1,
		}),
	)
	if err := svc.InitializeOfflineMode(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize service: %w", err)
	}
	defer func() {
		if err := svc.CleanupOfflineMode(); err != nil {
			slog.Error("harness cleanup failed", "scenario", scenario.Name, "error", err)
		}
	}()

	h := &Harness{svc: svc, gateway: gw}

	for i, r := range scenario.Remote {
		payload, err := normalizePayload(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("remote[%d]: %w", i, err)
		}
		gw.Seed(model.ItemType(r.Type), r.Key, payload)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.action(), err)
		}
	}

	items, err := svc.SyncQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final queue: %w", err)
	}
	for _, it := range items {
		result.Queue = append(result.Queue, QueueEntry{ID: it.ID, Type: string(it.Type), Version: it.Version})
	}
	result.Calls = callEntries(gw.Calls())

	actx := &AssertionContext{Ctx: ctx, Service: svc, Gateway: gw}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep runs one step and appends its trace event.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	switch step.action() {
	case "enqueue":
		return h.enqueue(ctx, n, step.Enqueue, result)
	case "save_progress":
		return h.saveProgress(ctx, n, step.SaveProgress, result)
	case "sync":
		return h.sync(ctx, n, step.Sync, result)
	case "resolve":
		return h.resolve(ctx, n, step.Resolve, result)
	case "fail":
		h.gateway.FailAlways(step.Fail.Item, step.Fail.Reason)
		result.Trace = append(result.Trace, TraceEvent{Step: n, Action: "fail", Item: step.Fail.Item})
		return nil
	case "heal":
		h.gateway.Heal(step.Heal)
		result.Trace = append(result.Trace, TraceEvent{Step: n, Action: "heal", Item: step.Heal})
		return nil
	default:
		return fmt.Errorf("step has no single action")
	}
}

func (h *Harness) enqueue(ctx context.Context, n int, s *EnqueueStep, result *Result) error {
	payload, err := normalizePayload(s.Payload)
	if err != nil {
		return err
	}
	item, err := h.svc.AddToSyncQueue(ctx, model.SyncItem{
		Type:               model.ItemType(s.Type),
		Payload:            payload,
		ConflictResolution: model.Policy(s.Policy),
	})
	if err != nil {
		return err
	}
	result.Trace = append(result.Trace, TraceEvent{
		Step:    n,
		Action:  "enqueue",
		Item:    item.ID,
		Type:    string(item.Type),
		Version: item.Version,
	})
	return nil
}

func (h *Harness) saveProgress(ctx context.Context, n int, s *ProgressStep, result *Result) error {
	if err := h.svc.SaveProgress(ctx, s.Course, s.Module, s.Progress, s.Synced); err != nil {
		return err
	}
	result.Trace = append(result.Trace, TraceEvent{
		Step:   n,
		Action: "save_progress",
		Key:    s.Course + ":" + s.Module,
	})
	return nil
}

func (h *Harness) sync(ctx context.Context, n int, s *SyncStep, result *Result) error {
	res, err := h.svc.SyncData(ctx, engine.SyncOptions{
		ResolveConflicts: model.Policy(s.Policy),
		RetryAttempts:    s.RetryAttempts,
	})
	if err != nil {
		return err
	}

	ev := TraceEvent{
		Step:    n,
		Action:  "sync",
		Success: &res.Success,
		Synced:  &res.SyncedItems,
		Errors:  res.Errors,
	}
	for _, c := range res.Conflicts {
		ev.Conflicts = append(ev.Conflicts, ConflictEvent{
			Item:       c.ItemID,
			Type:       string(c.Type),
			Resolution: string(c.Resolution),
			Resolved:   c.Resolved,
		})
	}
	result.Trace = append(result.Trace, ev)

	if s.Expect != nil {
		checkSync(n, s.Expect, res, result)
	}
	return nil
}

// checkSync compares a cycle result with the step's expectations.
func checkSync(n int, want *SyncExpect, got model.SyncResult, result *Result) {
	if want.Success != nil && *want.Success != got.Success {
		result.AddError(fmt.Sprintf("step %d: expected success=%v, got %v (errors: %v)", n, *want.Success, got.Success, got.Errors))
	}
	if want.Synced != nil && *want.Synced != got.SyncedItems {
		result.AddError(fmt.Sprintf("step %d: expected %d synced items, got %d", n, *want.Synced, got.SyncedItems))
	}
	if want.Conflicts != nil && *want.Conflicts != len(got.Conflicts) {
		result.AddError(fmt.Sprintf("step %d: expected %d conflicts, got %d", n, *want.Conflicts, len(got.Conflicts)))
	}
	if want.Errors != nil && *want.Errors != len(got.Errors) {
		result.AddError(fmt.Sprintf("step %d: expected %d errors, got %d: %v", n, *want.Errors, len(got.Errors), got.Errors))
	}
}

func (h *Harness) resolve(ctx context.Context, n int, s *ResolveStep, result *Result) error {
	open, err := h.svc.Conflicts(ctx, true)
	if err != nil {
		return err
	}

	var conflictID string
	for _, c := range open {
		if c.ItemID == s.Item {
			conflictID = c.ID
			break
		}
	}
	if conflictID == "" {
		result.AddError(fmt.Sprintf("step %d: no open conflict for item %s", n, s.Item))
		return nil
	}

	c, err := h.svc.ResolveConflict(ctx, conflictID, model.Policy(s.Resolution))
	if err != nil {
		result.AddError(fmt.Sprintf("step %d: resolve %s: %v", n, s.Item, err))
	}
	result.Trace = append(result.Trace, TraceEvent{
		Step:       n,
		Action:     "resolve",
		Item:       s.Item,
		Resolution: s.Resolution,
		Resolved:   &c.Resolved,
	})
	return nil
}

// normalizePayload round-trips a YAML value through JSON so numbers and
// nested maps take the shapes a stored payload has.
func normalizePayload(in map[string]any) (model.Payload, error) {
	if in == nil {
		return model.Payload{}, nil
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	var out model.Payload
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return out, nil
}
