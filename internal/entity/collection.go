// Package entity implements identity-keyed entity collections with
// upsert/evict semantics: the reconciler side of the engine.
package entity

import "sync"

// Entity is any identity-keyed record. Identity is an exact string match;
// a later upsert fully supersedes the previous value, with no partial
// field merge.
type Entity interface {
	EntityID() string
}

// Collection is an ordered, identity-keyed collection of entities.
//
// Uncapped collections preserve each entity's position in iteration order
// across replacements; new ids append at the back. Capped collections keep
// most-recent-N semantics: a new id inserts at the front and the oldest
// entry is evicted from the back once the cap is exceeded.
//
// Collection is safe for concurrent use. Snapshots are copies; consumers
// never observe a torn read.
type Collection[T Entity] struct {
	mu    sync.RWMutex
	cap   int // 0 = uncapped
	order []string
	items map[string]T

	evicted int64
}

// NewCollection creates an uncapped collection.
func NewCollection[T Entity]() *Collection[T] {
	return &Collection[T]{items: make(map[string]T)}
}

// NewCapped creates a collection retaining at most cap entries.
// A cap of 0 or less means uncapped.
func NewCapped[T Entity](cap int) *Collection[T] {
	if cap < 0 {
		cap = 0
	}
	return &Collection[T]{cap: cap, items: make(map[string]T)}
}

// Upsert inserts or replaces the entity with the same id.
func (c *Collection[T]) Upsert(e T) {
	id := e.EntityID()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[id]; exists {
		// Replace in place; iteration order is preserved.
		c.items[id] = e
		return
	}

	c.items[id] = e

	if c.cap > 0 {
		// Capped: newest first, evict from the back.
		c.order = append([]string{id}, c.order...)
		for len(c.order) > c.cap {
			last := c.order[len(c.order)-1]
			c.order = c.order[:len(c.order)-1]
			delete(c.items, last)
			c.evicted++
		}
		return
	}

	c.order = append(c.order, id)
}

// Get returns the entity with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[id]
	return e, ok
}

// Snapshot returns an ordered copy of the collection. The copy is immutable
// from the collection's point of view; eviction after the snapshot is taken
// can never be observed through it.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Len returns the number of retained entities.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Cap returns the retention cap, 0 if uncapped.
func (c *Collection[T]) Cap() int {
	return c.cap
}

// Evicted returns the number of entities evicted by the cap.
func (c *Collection[T]) Evicted() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evicted
}
