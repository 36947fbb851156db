// Package cache holds the two process-wide caches the engine context
// bundles together per spec §9 ("bundle them in a single context
// object passed into each component rather than module-global
// singletons"): a size-bounded FIFO embedding cache and an LRU
// provider-response cache.
package cache

import "sync"

// defaultCapacity is the embedding cache's default entry limit (§5).
const defaultCapacity = 1000

// Embedding is a size-bounded cache of text -> vector lookups with
// strict first-in eviction: the oldest inserted key is evicted
// regardless of how recently it was read. None of the retrieval pack's
// LRU libraries (golang-lru included) expose FIFO eviction, so this is
// hand-rolled rather than borrowed — see DESIGN.md.
type Embedding struct {
	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string][]float32
}

// NewEmbedding builds an Embedding cache bounded to capacity entries.
// capacity <= 0 uses the spec default of 1000.
func NewEmbedding(capacity int) *Embedding {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Embedding{
		capacity: capacity,
		entries:  make(map[string][]float32, capacity),
	}
}

// Get returns the cached vector for text, if present.
func (c *Embedding) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[text]
	return v, ok
}

// Put inserts or overwrites text's vector. A brand-new key may evict
// the oldest entry if the cache is already at capacity; overwriting an
// existing key never evicts and does not move it in eviction order.
func (c *Embedding) Put(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[text]; exists {
		c.entries[text] = vec
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.order = append(c.order, text)
	c.entries[text] = vec
}

// Len returns the current entry count.
func (c *Embedding) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
