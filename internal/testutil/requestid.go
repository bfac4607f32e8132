package testutil

import (
	"fmt"
	"sync"
)

// SequentialRequestIDs hands out "<prefix>-0001", "<prefix>-0002", ...
//
// Two runs of the same scenario get identical ids, which keeps journal
// hashes and golden traces stable.
type SequentialRequestIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRequestIDs returns a generator. An empty prefix means "req".
func NewSequentialRequestIDs(prefix string) *SequentialRequestIDs {
	if prefix == "" {
		prefix = "req"
	}
	return &SequentialRequestIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialRequestIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
