package engine

import (
	"time"

	"github.com/roach88/learnsync/internal/model"
)

// Defaults for SyncOptions.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// SyncOptions controls one cycle.
type SyncOptions struct {
	// ForceSync runs the cycle even while another one is in progress.
	ForceSync bool

	// ResolveConflicts is the cycle policy. Empty means manual.
	// An item's own ConflictResolution takes precedence.
	ResolveConflicts model.Policy

	// RetryAttempts bounds an item's version: a failed item is retried while
	// its bumped version is at most RetryAttempts. Zero means the default.
	RetryAttempts int

	// RetryDelay is the first backoff delay; each retry doubles it.
	// Zero means the default; negative means no delay.
	RetryDelay time.Duration
}

// withDefaults fills zero values.
func (o SyncOptions) withDefaults() SyncOptions {
	o.ResolveConflicts = o.ResolveConflicts.OrDefault()
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// policyFor returns the policy that governs item.
func (o SyncOptions) policyFor(item model.SyncItem) model.Policy {
	if item.ConflictResolution != "" {
		return item.ConflictResolution
	}
	return o.ResolveConflicts
}
