package engine

import (
	"context"
	"log/slog"
)

// Enqueue submits a sync request to the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(r Request) bool {
	return e.requests.Enqueue(r)
}

// Pending returns the number of requests waiting for the Run loop.
func (e *Engine) Pending() int {
	return e.requests.Len()
}

// Run starts the single-writer request loop.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine at a time.
//
// ERROR HANDLING: a failed cycle is logged and delivered on the request's
// Reply channel; the loop continues with the next request. Requests still
// queued after Stop are drained before Run returns.
//
// Cancelling ctx only ends this Run; the request queue stays open, so
// requests enqueued afterwards wait for the next Run. Stop is final.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("sync engine starting")

	for {
		if req, ok := e.requests.TryDequeue(); ok {
			e.serve(ctx, req)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("sync engine stopping: context cancelled", "pending", e.requests.Len())
			return ctx.Err()

		case <-e.requests.Wait():
			// The signal channel closes with the queue, so this case also
			// fires on Stop.
			if e.requests.Len() == 0 && e.stopped() {
				slog.Info("sync engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the loop.
func (e *Engine) Stop() {
	e.requests.Close()
}

func (e *Engine) stopped() bool {
	e.requests.mu.Lock()
	defer e.requests.mu.Unlock()
	return e.requests.closed
}

// serve runs one request and delivers its reply.
func (e *Engine) serve(ctx context.Context, req Request) {
	opts := e.defaults
	if req.Options != nil {
		opts = *req.Options
	}

	result, err := e.RunCycle(ctx, opts)
	if err != nil {
		slog.Error("sync request failed", "source", req.Source, "error", err)
	}

	if req.Reply != nil {
		select {
		case req.Reply <- Reply{Result: result, Err: err}:
		default:
			slog.Warn("sync reply dropped: channel full", "source", req.Source)
		}
	}
}

// SyncNow enqueues a request and waits for its reply.
func (e *Engine) SyncNow(ctx context.Context, opts SyncOptions, source string) (Reply, error) {
	reply := make(chan Reply, 1)
	if !e.Enqueue(Request{Options: &opts, Reply: reply, Source: source}) {
		return Reply{}, ErrStopped
	}

	select {
	case r := <-reply:
		return r, nil
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}
