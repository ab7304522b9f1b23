// Package remote defines the contract between the sync engine and the
// remote system of record, plus two implementations.
//
// A Gateway applies one queued item and reports exactly one Outcome:
//   - Applied: the remote accepted the mutation
//   - Conflict: the remote holds a diverging record, returned with the outcome
//   - Error: a retryable failure (transport, server, breaker open)
//
// Conflicts are data, not errors. A Gateway never panics and never returns a
// Go error; everything it has to say fits in the Outcome.
//
// HTTPGateway talks to a JSON endpoint through a circuit breaker.
// MemoryGateway is an in-process reference remote for development,
// scenarios and tests.
package remote
