package remote

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/learnsync/internal/model"
)

// record is one remote record held by MemoryGateway.
type record struct {
	payload   model.Payload
	version   int
	updatedAt time.Time
	external  bool // written outside this client; diverging local writes conflict
}

// Call is one Apply observed by MemoryGateway.
type Call struct {
	Type    model.ItemType
	ItemID  string
	Version int
	Outcome OutcomeKind
}

// MemoryGateway is an in-process remote keyed by (type, record key).
//
// Records written through Apply belong to this client. Records created with
// Seed stand for changes made elsewhere: an item whose payload differs from
// such a record conflicts, unless it carries a local or merge override,
// which overwrites the record and takes ownership of it.
//
// Scripted outcomes take precedence over the default behavior.
//
// Thread-safety: MemoryGateway is safe for concurrent use.
type MemoryGateway struct {
	mu       sync.Mutex
	now      func() time.Time
	records  map[string]*record
	scripts  map[string][]Outcome
	failures map[string]string
	calls    []Call
}

// NewMemoryGateway returns an empty gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		now:      time.Now,
		records:  make(map[string]*record),
		scripts:  make(map[string][]Outcome),
		failures: make(map[string]string),
	}
}

// WithClock sets the clock used for record timestamps and returns g.
func (g *MemoryGateway) WithClock(now func() time.Time) *MemoryGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	return g
}

func recordID(t model.ItemType, key string) string {
	return string(t) + "/" + key
}

// Seed stores a record as if another client had written it.
func (g *MemoryGateway) Seed(t model.ItemType, key string, payload model.Payload) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[recordID(t, key)]
	if !ok {
		r = &record{}
		g.records[recordID(t, key)] = r
	}
	r.payload = payload.Clone()
	r.version++
	r.updatedAt = g.now().UTC()
	r.external = true
}

// Record returns the current remote payload for (t, key).
func (g *MemoryGateway) Record(t model.ItemType, key string) (model.Payload, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[recordID(t, key)]
	if !ok {
		return nil, false
	}
	return r.payload.Clone(), true
}

// Script queues outcomes for an item id. Each Apply of that item consumes
// one; once they run out the default behavior resumes.
func (g *MemoryGateway) Script(itemID string, outcomes ...Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scripts[itemID] = append(g.scripts[itemID], outcomes...)
}

// FailAlways makes every Apply of itemID fail with reason until Heal.
func (g *MemoryGateway) FailAlways(itemID, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[itemID] = reason
}

// Heal clears FailAlways for itemID.
func (g *MemoryGateway) Heal(itemID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.failures, itemID)
}

// Calls returns every Apply observed so far, in order.
func (g *MemoryGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// Apply implements Gateway.
func (g *MemoryGateway) Apply(ctx context.Context, t model.ItemType, item model.SyncItem) Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := g.apply(ctx, t, item)
	g.calls = append(g.calls, Call{Type: t, ItemID: item.ID, Version: item.Version, Outcome: out.Kind})
	return out
}

func (g *MemoryGateway) apply(ctx context.Context, t model.ItemType, item model.SyncItem) Outcome {
	if err := ctx.Err(); err != nil {
		return Failed(err.Error())
	}

	if script := g.scripts[item.ID]; len(script) > 0 {
		g.scripts[item.ID] = script[1:]
		if len(script) == 1 {
			delete(g.scripts, item.ID)
		}
		return script[0]
	}
	if reason, ok := g.failures[item.ID]; ok {
		return Failed(reason)
	}

	id := recordID(t, item.RecordKey())
	r, exists := g.records[id]

	override := item.ConflictResolution == model.PolicyLocal || item.ConflictResolution == model.PolicyMerge
	if exists && r.external && !override && !model.PayloadsEqual(r.payload, item.Payload) {
		return Conflicted(model.SyncItem{
			ID:        item.ID,
			Type:      t,
			Payload:   r.payload.Clone(),
			Timestamp: r.updatedAt,
			Version:   r.version,
		})
	}

	if !exists {
		r = &record{}
		g.records[id] = r
	}
	r.payload = item.Payload.Clone()
	r.version++
	r.updatedAt = g.now().UTC()
	r.external = false
	return Applied()
}
