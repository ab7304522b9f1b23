package remote

import (
	"context"
	"fmt"

	"github.com/roach88/learnsync/internal/model"
)

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeApplied OutcomeKind = iota
	OutcomeConflict
	OutcomeError
)

// String returns the lowercase outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeApplied:
		return "applied"
	case OutcomeConflict:
		return "conflict"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of applying one item remotely.
// Remote is set only for OutcomeConflict, Reason only for OutcomeError.
type Outcome struct {
	Kind   OutcomeKind
	Remote model.SyncItem
	Reason string
}

// Applied reports a confirmed remote apply.
func Applied() Outcome {
	return Outcome{Kind: OutcomeApplied}
}

// Conflicted reports divergence with the given remote record.
func Conflicted(remote model.SyncItem) Outcome {
	return Outcome{Kind: OutcomeConflict, Remote: remote}
}

// Failed reports a retryable failure.
func Failed(reason string) Outcome {
	return Outcome{Kind: OutcomeError, Reason: reason}
}

// Err returns an *ApplyError for OutcomeError and nil otherwise.
func (o Outcome) Err(t model.ItemType, itemID string) error {
	if o.Kind != OutcomeError {
		return nil
	}
	return &ApplyError{Type: t, ItemID: itemID, Reason: o.Reason}
}

// ApplyError is a failed remote apply. It is always retryable.
type ApplyError struct {
	Type   model.ItemType
	ItemID string
	Reason string
}

// Error implements the error interface.
func (e *ApplyError) Error() string {
	return fmt.Sprintf("remote apply %s %s failed: %s", e.Type, e.ItemID, e.Reason)
}

// Gateway applies queued items to the remote system.
type Gateway interface {
	Apply(ctx context.Context, t model.ItemType, item model.SyncItem) Outcome
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, t model.ItemType, item model.SyncItem) Outcome

// Apply calls f.
func (f GatewayFunc) Apply(ctx context.Context, t model.ItemType, item model.SyncItem) Outcome {
	return f(ctx, t, item)
}
