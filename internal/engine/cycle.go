package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/learnsync/internal/model"
)

// ItemState is the position of a queued item within one cycle.
type ItemState int

const (
	// StateQueued is the initial state of every snapshot item.
	StateQueued ItemState = iota
	// StateAttempting means a gateway call is in flight.
	StateAttempting
	// StateApplied means the remote confirmed the item and it was dequeued.
	StateApplied
	// StateConflicted means the remote diverged and the resolver took over.
	StateConflicted
	// StateRetrying means the last attempt failed and a backoff is pending.
	StateRetrying
	// StateFailed means the retry budget is exhausted; the item stays queued.
	StateFailed
	// StateSkipped means the item waits on an unresolved manual conflict.
	StateSkipped
)

// String returns the state name.
func (s ItemState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateAttempting:
		return "attempting"
	case StateApplied:
		return "applied"
	case StateConflicted:
		return "conflicted"
	case StateRetrying:
		return "retrying"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("ItemState(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are allowed.
func (s ItemState) Terminal() bool {
	switch s {
	case StateApplied, StateConflicted, StateFailed, StateSkipped:
		return true
	}
	return false
}

// transitions lists the legal moves out of each state.
var transitions = map[ItemState][]ItemState{
	StateQueued:     {StateAttempting, StateSkipped},
	StateAttempting: {StateApplied, StateConflicted, StateRetrying, StateFailed},
	StateRetrying:   {StateAttempting, StateFailed},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to ItemState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Attempt is the per-item record kept by a Cycle.
type Attempt struct {
	ItemID   string
	Type     model.ItemType
	State    ItemState
	Attempts int    // Gateway calls made in this cycle
	Version  int    // Item version as last persisted
	Reason   string // Last gateway failure, if any
}

// Cycle holds the state machines of every item in one sync cycle.
//
// Attempts live in an arena slice in snapshot order; index maps item ids
// to arena slots.
//
// Thread-safety: Cycle is safe for concurrent use via internal mutex.
type Cycle struct {
	Seq int64

	mu       sync.Mutex
	attempts []Attempt
	index    map[string]int
}

// newCycle creates a cycle with every item in StateQueued.
func newCycle(seq int64, items []model.SyncItem) *Cycle {
	c := &Cycle{
		Seq:      seq,
		attempts: make([]Attempt, 0, len(items)),
		index:    make(map[string]int, len(items)),
	}
	for _, it := range items {
		c.index[it.ID] = len(c.attempts)
		c.attempts = append(c.attempts, Attempt{
			ItemID:  it.ID,
			Type:    it.Type,
			State:   StateQueued,
			Version: it.Version,
		})
	}
	return c
}

// Transition moves an item to a new state.
// Entering StateAttempting counts an attempt.
func (c *Cycle) Transition(itemID string, to ItemState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[itemID]
	if !ok {
		return fmt.Errorf("item %s is not part of cycle %d", itemID, c.Seq)
	}
	a := &c.attempts[i]
	if !CanTransition(a.State, to) {
		return &TransitionError{ItemID: itemID, From: a.State, To: to}
	}
	a.State = to
	if to == StateAttempting {
		a.Attempts++
	}
	return nil
}

// record updates the version and failure reason of an item.
func (c *Cycle) record(itemID string, version int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[itemID]; ok {
		c.attempts[i].Version = version
		c.attempts[i].Reason = reason
	}
}

// Attempt returns the record for one item.
func (c *Cycle) Attempt(itemID string) (Attempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[itemID]
	if !ok {
		return Attempt{}, false
	}
	return c.attempts[i], true
}

// Attempts returns every record in snapshot order.
func (c *Cycle) Attempts() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Attempt, len(c.attempts))
	copy(out, c.attempts)
	return out
}

// Count returns how many items are in state s.
func (c *Cycle) Count(s ItemState) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, a := range c.attempts {
		if a.State == s {
			n++
		}
	}
	return n
}
