package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/learnsync/internal/model"
)

// ErrSyncInProgress is returned by RunCycle while another cycle is running
// and the options do not force a sync.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrStopped is returned when submitting a request to a stopped engine.
var ErrStopped = errors.New("sync engine stopped")

// PersistentFailureError is an item that exhausted its retry budget.
// The item stays queued; the error message lands in SyncResult.Errors.
type PersistentFailureError struct {
	// ItemID identifies the queued item.
	ItemID string

	// Type is the item type.
	Type model.ItemType

	// Version is the item version after the last failed attempt.
	Version int

	// Attempts counts Apply calls made for the item in this cycle.
	Attempts int

	// Reason is the last failure reported by the gateway.
	Reason string

	// Err is set when the retry loop was cut short (e.g. context cancelled).
	Err error
}

// Error implements the error interface.
func (e *PersistentFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sync %s %s failed after %d attempt(s) (version %d): %s: %v",
			e.Type, e.ItemID, e.Attempts, e.Version, e.Reason, e.Err)
	}
	return fmt.Sprintf("sync %s %s failed after %d attempt(s) (version %d): %s",
		e.Type, e.ItemID, e.Attempts, e.Version, e.Reason)
}

// Unwrap returns the interrupting cause, if any.
func (e *PersistentFailureError) Unwrap() error {
	return e.Err
}

// IsPersistentFailure returns true if err is an exhausted retry budget.
// Uses errors.As to handle wrapped errors.
func IsPersistentFailure(err error) bool {
	var pf *PersistentFailureError
	return errors.As(err, &pf)
}

// CallbackError reports a state-change subscriber that panicked.
// It is logged and never aborts a cycle.
type CallbackError struct {
	Subscriber int
	Change     StateChange
	Panic      any
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	return fmt.Sprintf("state subscriber %d panicked on %s -> %s: %v", e.Subscriber, e.Change.From, e.Change.To, e.Panic)
}

// IsCallbackError returns true if err is a subscriber failure.
func IsCallbackError(err error) bool {
	var ce *CallbackError
	return errors.As(err, &ce)
}

// TransitionError is an illegal item state transition.
type TransitionError struct {
	ItemID string
	From   ItemState
	To     ItemState
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("item %s: illegal transition %s -> %s", e.ItemID, e.From, e.To)
}
