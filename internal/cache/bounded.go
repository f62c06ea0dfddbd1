package cache

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	// DefaultCapacity is the cardinality cap for in-memory caches
	DefaultCapacity = 100

	trimThreshold = 0.8
	trimFraction  = 0.2
)

// BoundedCache is an insertion-ordered map whose size is kept in check by Trim.
// Set never evicts; the retention sweeper calls Trim periodically.
type BoundedCache[V any] struct {
	name     string
	capacity int

	mu      sync.Mutex
	entries *orderedmap.OrderedMap[string, V]
}

// NewBoundedCache creates an empty cache. A non-positive capacity uses DefaultCapacity.
func NewBoundedCache[V any](name string, capacity int) *BoundedCache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BoundedCache[V]{
		name:     name,
		capacity: capacity,
		entries:  orderedmap.New[string, V](),
	}
}

func (c *BoundedCache[V]) Name() string {
	return c.name
}

func (c *BoundedCache[V]) Capacity() int {
	return c.capacity
}

func (c *BoundedCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// Set stores value under key. Overwriting keeps the original insertion position.
func (c *BoundedCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Set(key, value)
}

func (c *BoundedCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Delete(key)
}

func (c *BoundedCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Keys returns the keys oldest first
func (c *BoundedCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Trim evicts the oldest entries once the cache holds more than 80% of its
// capacity. It removes 20% of the capacity, or more if needed to get back
// under the cap, and returns the number of evicted entries.
func (c *BoundedCache[V]) Trim() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.entries.Len()
	if float64(size) <= float64(c.capacity)*trimThreshold {
		return 0
	}

	evict := int(float64(c.capacity) * trimFraction)
	if over := size - c.capacity; over > evict {
		evict = over
	}
	if evict < 1 {
		evict = 1
	}

	removed := 0
	for removed < evict {
		oldest := c.entries.Oldest()
		if oldest == nil {
			break
		}
		c.entries.Delete(oldest.Key)
		removed++
	}
	return removed
}

func (c *BoundedCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[string, V]()
}
