package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/offline"
	"github.com/roach88/learnsync/internal/remote"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", event.Step, event.Action)
		if event.Item != "" {
			fmt.Fprintf(&buf, " %s", event.Item)
		}
		if event.Synced != nil {
			fmt.Fprintf(&buf, " synced=%d conflicts=%d errors=%d", *event.Synced, len(event.Conflicts), len(event.Errors))
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	Service *offline.Service
	Gateway *remote.MemoryGateway
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertQueueLength:
		return assertQueueLength(result, a)
	case AssertQueueItem:
		return assertQueueItem(result, a)
	case AssertRemoteRecord:
		return assertRemoteRecord(result, a, actx)
	case AssertRemoteMissing:
		return assertRemoteMissing(result, a, actx)
	case AssertConflicts:
		return assertConflicts(result, a, actx)
	case AssertHistoryLength:
		return assertHistoryLength(result, a, actx)
	case AssertProgress:
		return assertProgress(result, a, actx)
	case AssertRemoteCalls:
		return assertRemoteCalls(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertQueueLength(result *Result, a Assertion) error {
	if len(result.Queue) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertQueueLength,
		Expected: fmt.Sprintf("%d queued items", a.Count),
		Actual:   fmt.Sprintf("%d queued items: %v", len(result.Queue), result.Queue),
		Trace:    result.Trace,
	}
}

func assertQueueItem(result *Result, a Assertion) error {
	for _, q := range result.Queue {
		if q.ID != a.Item {
			continue
		}
		if q.Version == a.Version {
			return nil
		}
		return &AssertionError{
			Type:     AssertQueueItem,
			Expected: fmt.Sprintf("%s queued at version %d", a.Item, a.Version),
			Actual:   fmt.Sprintf("version %d", q.Version),
			Trace:    result.Trace,
		}
	}
	return &AssertionError{
		Type:     AssertQueueItem,
		Expected: fmt.Sprintf("%s queued at version %d", a.Item, a.Version),
		Actual:   "not queued",
		Trace:    result.Trace,
	}
}

func assertRemoteRecord(result *Result, a Assertion, actx *AssertionContext) error {
	rec, ok := actx.Gateway.Record(model.ItemType(a.ItemType), a.Key)
	if !ok {
		return &AssertionError{
			Type:     AssertRemoteRecord,
			Expected: fmt.Sprintf("remote %s/%s matching %v", a.ItemType, a.Key, a.Expect),
			Actual:   "no record",
			Trace:    result.Trace,
		}
	}
	if err := matchFields(rec, a.Expect); err != nil {
		return &AssertionError{
			Type:     AssertRemoteRecord,
			Expected: fmt.Sprintf("remote %s/%s matching %v", a.ItemType, a.Key, a.Expect),
			Actual:   fmt.Sprintf("%v (%v)", map[string]any(rec), err),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertRemoteMissing(result *Result, a Assertion, actx *AssertionContext) error {
	rec, ok := actx.Gateway.Record(model.ItemType(a.ItemType), a.Key)
	if !ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertRemoteMissing,
		Expected: fmt.Sprintf("no remote %s/%s", a.ItemType, a.Key),
		Actual:   fmt.Sprintf("%v", map[string]any(rec)),
		Trace:    result.Trace,
	}
}

func assertConflicts(result *Result, a Assertion, actx *AssertionContext) error {
	conflicts, err := actx.Service.Conflicts(actx.Ctx, a.Unresolved)
	if err != nil {
		return err
	}
	if len(conflicts) == a.Count {
		return nil
	}
	kind := "logged"
	if a.Unresolved {
		kind = "unresolved"
	}
	return &AssertionError{
		Type:     AssertConflicts,
		Expected: fmt.Sprintf("%d %s conflicts", a.Count, kind),
		Actual:   fmt.Sprintf("%d", len(conflicts)),
		Trace:    result.Trace,
	}
}

func assertHistoryLength(result *Result, a Assertion, actx *AssertionContext) error {
	history, err := actx.Service.SyncHistory(actx.Ctx)
	if err != nil {
		return err
	}
	if len(history) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertHistoryLength,
		Expected: fmt.Sprintf("%d recorded results", a.Count),
		Actual:   fmt.Sprintf("%d", len(history)),
		Trace:    result.Trace,
	}
}

func assertProgress(result *Result, a Assertion, actx *AssertionContext) error {
	p, ok, err := actx.Service.GetProgress(actx.Ctx, a.Course, a.Module)
	if err != nil {
		return err
	}
	if !ok {
		return &AssertionError{
			Type:     AssertProgress,
			Expected: fmt.Sprintf("progress %s:%s matching %v", a.Course, a.Module, a.Expect),
			Actual:   "no record",
			Trace:    result.Trace,
		}
	}

	actual := map[string]any{"progress": p.Progress, "synced": p.Synced}
	if err := matchFields(actual, a.Expect); err != nil {
		return &AssertionError{
			Type:     AssertProgress,
			Expected: fmt.Sprintf("progress %s:%s matching %v", a.Course, a.Module, a.Expect),
			Actual:   fmt.Sprintf("%v (%v)", actual, err),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertRemoteCalls(result *Result, a Assertion) error {
	count := 0
	for _, c := range result.Calls {
		if c.Item == a.Item {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRemoteCalls,
		Expected: fmt.Sprintf("%d remote applies of %s", a.Count, a.Item),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    result.Trace,
	}
}

// matchFields checks that every expected key is present in actual with an
// equal value. Extra keys in actual are allowed.
func matchFields(actual map[string]any, expected map[string]any) error {
	want, err := normalizePayload(expected)
	if err != nil {
		return err
	}
	got, err := normalizePayload(actual)
	if err != nil {
		return err
	}
	for key, w := range want {
		g, ok := got[key]
		if !ok {
			return fmt.Errorf("missing key %q", key)
		}
		if !reflect.DeepEqual(g, w) {
			return fmt.Errorf("key %q: got %v, want %v", key, g, w)
		}
	}
	return nil
}
