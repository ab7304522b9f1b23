// Package engine implements the learnsync sync orchestrator.
//
// The engine drives reconciliation cycles between the local sync queue and
// the remote gateway.
//
// ARCHITECTURE:
//
// Cycle:
// 1. Snapshot the queue (an empty queue returns a successful empty result)
// 2. Partition the snapshot by item type, first-observed order
// 3. Per group, sequentially, per item: Gateway.Apply
//   - Applied: remove the item
//   - Conflict: hand it to the conflict resolver with the effective policy
//   - Error: bump the version, back off exponentially and retry while the
//     version is within the retry budget, otherwise report it and keep it
//
// 4. Record the result in the sync history (most-recent-first, bounded)
//
// Every item moves through an explicit state machine held in a per-cycle
// arena (see Cycle). Failures are isolated per group: a panic or store error
// in one group is reported in the result and the remaining groups still run.
//
// Single-Writer Loop:
// Run consumes sync requests from a FIFO queue in one goroutine, so
// scheduled and on-demand syncs never overlap. RunCycle can also be called
// directly; overlapping calls fail with ErrSyncInProgress unless forced.
//
// CRITICAL PATTERNS:
//
// Confirm-then-remove: an item leaves the queue only after the remote
// confirmed it or its conflict was resolved.
//
// Never drop data: items that exhaust their retry budget stay queued and
// are reported in SyncResult.Errors.
package engine
