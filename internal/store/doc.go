// Package store provides the SQLite-backed local store for learnsync.
//
// The store is a durable key/value store partitioned into named collections,
// modelled on the browser storage it replaces:
//   - Collections: registered at Init with a key path (the JSON field holding
//     the primary key) and optional named indexes over JSON fields
//   - Records: one row per (collection, key), value stored as JSON TEXT
//   - Insertion order: every record gets a seq on first insert; upserts keep
//     it, so GetAll returns records in the order they were first written
//
// # Guarantees
//
//   - Every operation is atomic (one statement or one transaction)
//   - A single connection serializes writers; there is no cross-collection
//     atomicity beyond that
//   - Init is additive and idempotent: missing collections and indexes are
//     created, nothing is ever dropped
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// A byte budget (WithByteBudget) turns writes that would exceed it into
// ErrStorageQuotaExceeded.
package store
