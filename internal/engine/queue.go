package engine

import (
	"sync"

	"github.com/roach88/learnsync/internal/model"
)

// Request asks the Run loop for one sync cycle.
type Request struct {
	// Options for the cycle. Nil uses the engine's default options.
	Options *SyncOptions

	// Reply, if set, receives the outcome. It must have room for one value;
	// the loop never blocks on it.
	Reply chan<- Reply

	// Source labels the request in logs ("cli", "scheduler", ...).
	Source string
}

// Reply is the outcome of a Request.
type Reply struct {
	Result model.SyncResult
	Err    error
}

// requestQueue is a thread-safe FIFO queue of sync requests.
//
// The queue is unbounded so callers never block on Enqueue.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type requestQueue struct {
	mu       sync.Mutex
	requests []Request
	closed   bool
	signal   chan struct{} // Signals request availability (buffered, size 1)
}

// newRequestQueue creates an empty request queue.
func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]Request, 0, 8),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Request{}, false) if queue is empty.
func (q *requestQueue) TryDequeue() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return Request{}, false
	}

	r := q.requests[0]

	// Clear the slot so the reply channel can be collected.
	q.requests[0] = Request{}

	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}

	return r, true
}

// Wait returns a channel that signals when requests may be available.
// The channel is closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close signals that no more requests will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
