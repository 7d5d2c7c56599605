// Package dedup provides message fingerprinting and the bounded seen-set
// used to suppress duplicate deliveries within a stream session.
package dedup

import "fmt"

// Cache is a bounded set of fingerprints with insertion-order FIFO eviction.
// Re-adding a present fingerprint does not refresh its position (this is not
// an LRU): the eviction window is "first seen", matching how the chat pane
// re-renders old messages on every extraction.
//
// Not safe for concurrent use; each stream session owns exactly one Cache and
// touches it only from its own goroutine.
type Cache struct {
	capacity int
	present  map[string]struct{}
	order    []string
	head     int
}

// NewCache creates a cache that EvictToCapacity will bound to capacity
// entries. Capacity must be positive.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("dedup: capacity must be positive, got %d", capacity)
	}
	return &Cache{
		capacity: capacity,
		present:  make(map[string]struct{}, capacity),
	}, nil
}

// Has reports whether fp has been added and not yet evicted.
func (c *Cache) Has(fp string) bool {
	_, ok := c.present[fp]
	return ok
}

// Add inserts fp. Idempotent: adding a present fingerprint is a no-op and
// keeps its original insertion position.
func (c *Cache) Add(fp string) {
	if _, ok := c.present[fp]; ok {
		return
	}
	c.present[fp] = struct{}{}
	c.order = append(c.order, fp)
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return len(c.present)
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int {
	return c.capacity
}

// EvictToCapacity drops the oldest-inserted entries until at most maxSize
// remain. No-op when the cache is already within bounds.
func (c *Cache) EvictToCapacity(maxSize int) {
	if maxSize < 0 {
		maxSize = 0
	}
	for len(c.present) > maxSize {
		fp := c.order[c.head]
		c.order[c.head] = "" // release for GC
		c.head++
		delete(c.present, fp)
	}
	// Compact the backing slice once the dead prefix dominates it.
	if c.head > len(c.order)/2 {
		c.order = append([]string(nil), c.order[c.head:]...)
		c.head = 0
	}
}
