// Package queue manages the durable sync queue.
//
// Every local mutation that must reach the remote system is persisted as a
// model.SyncItem in the store's syncQueue collection. Items keep their
// enqueue order; their version only ever increases while they wait.
//
// GroupByType partitions a snapshot into per-type batches for a sync cycle.
package queue
