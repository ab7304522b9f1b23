package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequenceGenerator generates ids "<prefix>-1", "<prefix>-2", ...
//
// Unlike queue.FixedGenerator it never runs out, which suits scenarios that
// enqueue an unknown number of items.
//
// Thread-safety: SequenceGenerator is safe for concurrent use.
type SequenceGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequenceGenerator creates a generator for prefix. An empty prefix
// defaults to "item".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "item"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id in the sequence.
func (g *SequenceGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
