package harness

import "github.com/roach88/learnsync/internal/remote"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step       int             `json:"step"`
	Action     string          `json:"action"`
	Item       string          `json:"item,omitempty"`
	Type       string          `json:"type,omitempty"`
	Version    int             `json:"version,omitempty"`
	Key        string          `json:"key,omitempty"`
	Resolution string          `json:"resolution,omitempty"`
	Resolved   *bool           `json:"resolved,omitempty"`
	Success    *bool           `json:"success,omitempty"`
	Synced     *int            `json:"synced,omitempty"`
	Conflicts  []ConflictEvent `json:"conflicts,omitempty"`
	Errors     []string        `json:"errors,omitempty"`
}

// ConflictEvent is a conflict reported by a sync step.
type ConflictEvent struct {
	Item       string `json:"item"`
	Type       string `json:"type"`
	Resolution string `json:"resolution"`
	Resolved   bool   `json:"resolved"`
}

// QueueEntry is a queued item left after the scenario.
type QueueEntry struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Version int    `json:"version"`
}

// CallEntry is one Apply seen by the remote.
type CallEntry struct {
	Item    string `json:"item"`
	Type    string `json:"type"`
	Version int    `json:"version"`
	Outcome string `json:"outcome"`
}

func callEntries(calls []remote.Call) []CallEntry {
	out := make([]CallEntry, len(calls))
	for i, c := range calls {
		out[i] = CallEntry{
			Item:    c.ItemID,
			Type:    string(c.Type),
			Version: c.Version,
			Outcome: c.Outcome.String(),
		}
	}
	return out
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Queue is the sync queue after the last step.
	Queue []QueueEntry `json:"queue"`

	// Calls lists every remote apply in order.
	Calls []CallEntry `json:"calls"`

	// Errors holds failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing, empty result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Queue:  []QueueEntry{},
		Calls:  []CallEntry{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
