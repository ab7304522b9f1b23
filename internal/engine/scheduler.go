package engine

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler submits a sync request to an Engine on a fixed interval.
//
// A tick is skipped while an earlier request is still waiting, so a slow
// remote never builds a backlog of identical syncs.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
}

// NewScheduler creates a scheduler. interval must be positive.
func NewScheduler(e *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{engine: e, interval: interval}
}

// Run ticks until ctx is cancelled or the engine stops accepting requests.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("sync scheduler starting", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.engine.Pending() > 0 {
				slog.Debug("scheduled sync skipped: request pending")
				continue
			}
			if !s.engine.Enqueue(Request{Source: "scheduler"}) {
				slog.Info("sync scheduler stopping: engine stopped")
				return nil
			}
		}
	}
}
