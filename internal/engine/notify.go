package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/learnsync/internal/model"
)

// State is the orchestrator state.
type State int

const (
	StateIdle State = iota
	StateSyncing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StateChange is delivered to subscribers on every state transition.
// Result is set when a cycle completes successfully (it may still carry
// per-item errors).
type StateChange struct {
	From   State
	To     State
	Cycle  int64
	Result *model.SyncResult
}

type subscriber struct {
	id int
	fn func(StateChange)
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn runs synchronously on the cycle's goroutine; a panic in fn
// is logged as a CallbackError and otherwise ignored.
func (e *Engine) Subscribe(fn func(StateChange)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextSub++
	id := e.nextSub
	e.subs = append(e.subs, subscriber{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// notify delivers change to every subscriber in registration order.
func (e *Engine) notify(change StateChange) {
	e.mu.Lock()
	subs := make([]subscriber, len(e.subs))
	copy(subs, e.subs)
	e.mu.Unlock()

	for _, s := range subs {
		e.deliver(s, change)
	}
}

func (e *Engine) deliver(s subscriber, change StateChange) {
	defer func() {
		if r := recover(); r != nil {
			err := &CallbackError{Subscriber: s.id, Change: change, Panic: r}
			slog.Error("state subscriber failed", "error", err)
		}
	}()
	s.fn(change)
}
