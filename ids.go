package pipeline

import (
	"fmt"
	"sync"
)

// IDGenerator issues node ids of the form "<type>-<n>", counting per type.
// Counters only move forward until Reset.
type IDGenerator struct {
	mu       sync.Mutex
	counters map[NodeType]int
}

// NewIDGenerator returns a generator with every counter at zero.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{counters: make(map[NodeType]int)}
}

// Next increments the counter for t and returns the new id.
func (g *IDGenerator) Next(t NodeType) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counters[t]++
	return fmt.Sprintf("%s-%d", t, g.counters[t])
}

// Seed raises the counter for t to n so that ids up to n are never issued.
// Lower values are ignored.
func (g *IDGenerator) Seed(t NodeType, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n > g.counters[t] {
		g.counters[t] = n
	}
}

// Counters returns a copy of the counter table.
func (g *IDGenerator) Counters() map[NodeType]int {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[NodeType]int, len(g.counters))
	for t, n := range g.counters {
		out[t] = n
	}
	return out
}

// Reset zeroes every counter.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counters = make(map[NodeType]int)
}
