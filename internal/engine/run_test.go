package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/learnsync/internal/model"
)

// verifyNoLeaks ignores the connection opener of the test store, which is
// closed by t.Cleanup after deferred checks run.
func verifyNoLeaks(t *testing.T) {
	t.Helper()
	goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

func TestRun_StopsOnContext(t *testing.T) {
	defer verifyNoLeaks(t)
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.engine.Run(ctx)
	}()

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop on context cancellation")
	}

	// Cancellation ends only that loop; a new Run serves later requests.
	replies := make(chan Reply, 1)
	require.True(t, h.engine.Enqueue(Request{Options: &fastRetry, Reply: replies, Source: "test"}))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	go func() {
		errCh <- h.engine.Run(ctx2)
	}()

	select {
	case r := <-replies:
		require.NoError(t, r.Err)
		assert.True(t, r.Result.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("restarted engine did not serve the request")
	}

	h.engine.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	assert.False(t, h.engine.Enqueue(Request{}), "enqueue after stop should fail")
}

func TestRun_ServesRequests(t *testing.T) {
	defer verifyNoLeaks(t)
	h := newHarness(t, nil, WithDefaultOptions(fastRetry))
	h.add(t, model.TypeNote, model.Payload{})
	h.add(t, model.TypeProgress, model.Payload{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.engine.Run(ctx)
	}()

	reply, err := h.engine.SyncNow(ctx, fastRetry, "test")
	require.NoError(t, err)
	require.NoError(t, reply.Err)
	assert.Equal(t, 2, reply.Result.SyncedItems)

	// A request without options uses the engine defaults.
	replies := make(chan Reply, 1)
	require.True(t, h.engine.Enqueue(Request{Reply: replies, Source: "test"}))
	select {
	case r := <-replies:
		require.NoError(t, r.Err)
		assert.True(t, r.Result.Success)
	case <-time.After(time.Second):
		t.Fatal("no reply")
	}

	h.engine.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err, "engine should stop cleanly")
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}

	_, err = h.engine.SyncNow(ctx, fastRetry, "test")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestScheduler_EnqueuesSyncs(t *testing.T) {
	defer verifyNoLeaks(t)
	h := newHarness(t, nil, WithDefaultOptions(fastRetry))
	h.add(t, model.TypeNote, model.Payload{})

	synced := make(chan model.SyncResult, 16)
	h.engine.Subscribe(func(c StateChange) {
		if c.To == StateIdle && c.Result != nil {
			select {
			case synced <- *c.Result:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())

	runDone := make(chan error, 1)
	go func() { runDone <- h.engine.Run(ctx) }()

	schedDone := make(chan error, 1)
	go func() { schedDone <- NewScheduler(h.engine, 10*time.Millisecond).Run(ctx) }()

	select {
	case res := <-synced:
		assert.Equal(t, 1, res.SyncedItems)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never triggered a sync")
	}

	cancel()
	assert.ErrorIs(t, <-schedDone, context.Canceled)
	assert.ErrorIs(t, <-runDone, context.Canceled)
}

func TestScheduler_StopsWithEngine(t *testing.T) {
	defer verifyNoLeaks(t)
	h := newHarness(t, nil)
	h.engine.Stop()

	done := make(chan error, 1)
	go func() { done <- NewScheduler(h.engine, time.Millisecond).Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
