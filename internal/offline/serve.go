package offline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/learnsync/internal/engine"
)

// Serve runs the engine's request loop and, when interval is positive, a
// scheduler that requests a cycle every interval. Progress records are
// flagged synced after every cycle the loop runs, as SyncData does.
//
// Serve blocks until ctx is cancelled and returns nil in that case.
func (s *Service) Serve(ctx context.Context, interval time.Duration) error {
	rt, err := s.ready()
	if err != nil {
		return err
	}

	unsubscribe := rt.engine.Subscribe(progressTracker(ctx, rt))
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.engine.Run(gctx)
	})
	if interval > 0 {
		g.Go(func() error {
			return engine.NewScheduler(rt.engine, interval).Run(gctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// progressTracker snapshots queued progress when a cycle starts and marks
// records synced when it ends.
func progressTracker(ctx context.Context, rt *components) func(engine.StateChange) {
	var (
		mu     sync.Mutex
		before = make(map[int64]map[string]string)
	)

	return func(c engine.StateChange) {
		mu.Lock()
		defer mu.Unlock()

		switch c.To {
		case engine.StateSyncing:
			snap, err := queuedProgress(ctx, rt)
			if err != nil {
				slog.Error("progress snapshot failed", "cycle", c.Cycle, "error", err)
				return
			}
			before[c.Cycle] = snap
		case engine.StateIdle:
			snap := before[c.Cycle]
			delete(before, c.Cycle)
			if c.Result == nil {
				return
			}
			if err := markSynced(ctx, rt, snap); err != nil {
				slog.Error("progress sync flags not updated", "cycle", c.Cycle, "error", err)
			}
		}
	}
}
