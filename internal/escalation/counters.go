package escalation

import "sync"

// Counters is the process-wide mapping from author identity to the number
// of confirmed hate-speech violations. Counts only ever go up.
type Counters struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]int)}
}

// Increment bumps the author's counter by one and returns the new value.
func (c *Counters) Increment(authorID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[authorID]++
	return c.counts[authorID]
}

// Get returns the author's current counter (zero if never incremented).
func (c *Counters) Get(authorID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[authorID]
}
