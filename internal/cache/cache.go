package cache

// Cache is a frame-aware LRU cache. Entries are stamped with the frame
// they were last used in; Sweep drops entries idle for too many frames
// and Set evicts the least recently used entry when the cache is full.
//
// The brush keeps one Cache of section layouts so an unchanged section
// is not shaped again on the next frame.
//
// Cache is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	entries  map[K]*node[K, V]
	list     lruList[K, V]
	capacity int
	frame    uint64

	hits, misses, evictions uint64
}

// New creates a cache holding at most capacity entries.
// A capacity of 0 means unlimited.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	c := &Cache[K, V]{
		entries:  make(map[K]*node[K, V]),
		capacity: capacity,
	}
	c.list.init()
	return c
}

// Get returns the value for key and marks it used in the current frame.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	n, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	n.frame = c.frame
	c.list.moveToFront(n)
	return n.value, true
}

// Set stores value under key, replacing any previous value.
func (c *Cache[K, V]) Set(key K, value V) {
	if n, ok := c.entries[key]; ok {
		n.value = value
		n.frame = c.frame
		c.list.moveToFront(n)
		return
	}
	if c.capacity > 0 && c.list.len >= c.capacity {
		c.evict(c.list.back())
	}
	n := &node[K, V]{key: key, value: value, frame: c.frame}
	c.entries[key] = n
	c.list.pushFront(n)
}

// Delete removes key. It reports whether the key was present.
func (c *Cache[K, V]) Delete(key K) bool {
	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.list.remove(n)
	delete(c.entries, key)
	return true
}

// NextFrame advances the frame counter and returns the new frame.
func (c *Cache[K, V]) NextFrame() uint64 {
	c.frame++
	return c.frame
}

// Sweep evicts entries not used in the last maxIdle frames and returns
// how many were dropped. Entries are visited from least recently used,
// so the walk stops at the first entry that is still fresh.
func (c *Cache[K, V]) Sweep(maxIdle uint64) int {
	dropped := 0
	for n := c.list.back(); n != nil && c.frame-n.frame > maxIdle; n = c.list.back() {
		c.evict(n)
		dropped++
	}
	return dropped
}

func (c *Cache[K, V]) evict(n *node[K, V]) {
	c.list.remove(n)
	delete(c.entries, n.key)
	c.evictions++
}

// Clear removes all entries. Counters and the frame are kept.
func (c *Cache[K, V]) Clear() {
	clear(c.entries)
	c.list.init()
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int { return c.list.len }

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	s := Stats{
		Len:       c.list.len,
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Frame:     c.frame,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the entry limit, 0 for unlimited.
	Capacity int
	// Hits and Misses count Get results.
	Hits, Misses uint64
	// HitRate is Hits over all lookups, 0.0 to 1.0.
	HitRate float64
	// Evictions counts entries dropped by capacity or Sweep.
	Evictions uint64
	// Frame is the current frame number.
	Frame uint64
}
