// Package evalcache implements the fixed-capacity, thread-safe LRU cache
// of network evaluations keyed by full position key (spec §4.2).
package evalcache

import (
	"container/list"
	"math"
	"sync"

	"github.com/corvid-chess/azcore/board"
)

// MoveEval is one (move, prior) pair the network assigned to a position.
type MoveEval struct {
	Move  board.Move
	Prior float32
}

// CachedEval is an immutable-after-insert record: the value from the
// side-to-move perspective, plus exactly the moves the network considered.
type CachedEval struct {
	Q     float32
	Moves []MoveEval
}

// entry is the cache's internal boxed record.
type entry struct {
	key   uint64
	value *CachedEval
	pins  int
	elem  *list.Element // lru position; nil once logically evicted
	next  *entry        // open-chaining bucket link
}

// Ref is a pinned handle to a cached evaluation. Callers that no longer
// need the pin must call Cache.Unpin.
type Ref struct {
	e *entry
}

// Eval returns the cached record. Valid for the lifetime of the Ref.
func (r *Ref) Eval() *CachedEval { return r.e.value }

// Cache is a capacity-bounded LRU keyed by full position key, backed by an
// open-chaining hash table. A single mutex guards every operation,
// mutating or not — the expected hit-path cost is small and this avoids
// reader-writer complexity (spec §4.2).
type Cache struct {
	mu       sync.Mutex
	capacity int
	buckets  []*entry // chain heads
	live     int      // number of live (non-evicted) entries
	lru      *list.List

	evictedPinned map[uint64]*entry
}

// New builds a cache with the given capacity. Capacity 0 behaves as an
// always-empty cache (spec §8 boundary behavior): every insert is evicted
// before it becomes externally visible.
func New(capacity int) *Cache {
	c := &Cache{lru: list.New()}
	c.setCapacityLocked(capacity)
	return c
}

func bucketCount(capacity int) int {
	n := int(math.Ceil(float64(capacity)*1.33)) + 1
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Cache) bucketFor(key uint64) int {
	return int(key % uint64(len(c.buckets)))
}

func (c *Cache) findLocked(key uint64) (*entry, *entry) {
	var prev *entry
	for e := c.buckets[c.bucketFor(key)]; e != nil; e = e.next {
		if e.key == key {
			return e, prev
		}
		prev = e
	}
	return nil, nil
}

func (c *Cache) insertChainLocked(e *entry) {
	b := c.bucketFor(e.key)
	e.next = c.buckets[b]
	c.buckets[b] = e
}

func (c *Cache) removeChainLocked(e *entry) {
	b := c.bucketFor(e.key)
	cur := c.buckets[b]
	if cur == e {
		c.buckets[b] = e.next
		e.next = nil
		return
	}
	for cur != nil {
		if cur.next == e {
			cur.next = e.next
			e.next = nil
			return
		}
		cur = cur.next
	}
}

// Lookup returns a pinned Ref if key is present. It does not change LRU
// position — a deliberate choice to avoid lock contention on the hot read
// path (spec §4.2).
func (c *Cache) Lookup(key uint64) (*Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, _ := c.findLocked(key)
	if e == nil {
		return nil, false
	}
	e.pins++
	return &Ref{e: e}, true
}

// Contains reports whether key is present, without pinning it.
func (c *Cache) Contains(key uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, _ := c.findLocked(key)
	return e != nil
}

// Insert stores value under key, displacing any prior record for the same
// key. If over capacity, the LRU tail is evicted; a pinned victim is moved
// to the evicted-pinned list instead of being freed (spec §4.2). The new
// entry is placed at the LRU head and returned pinned if pin is true.
func (c *Cache) Insert(key uint64, value *CachedEval, pin bool) *Ref {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, _ := c.findLocked(key); old != nil {
		c.removeChainLocked(old)
		c.lru.Remove(old.elem)
		c.live--
	}

	e := &entry{key: key, value: value}
	if c.capacity > 0 {
		c.insertChainLocked(e)
		e.elem = c.lru.PushFront(e)
		c.live++
	}

	for c.capacity > 0 && c.live > c.capacity {
		c.evictTailLocked()
	}

	if pin {
		e.pins++
	}
	return &Ref{e: e}
}

func (c *Cache) evictTailLocked() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	victim := back.Value.(*entry)
	c.lru.Remove(back)
	victim.elem = nil
	c.removeChainLocked(victim)
	c.live--
	if victim.pins > 0 {
		if c.evictedPinned == nil {
			c.evictedPinned = make(map[uint64]*entry)
		}
		c.evictedPinned[victim.key] = victim
	}
}

// Unpin decrements the pin count of ref. If the entry has already been
// logically evicted and its pin count reaches zero, it is finally freed.
func (c *Cache) Unpin(key uint64, ref *Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := ref.e
	if e.pins > 0 {
		e.pins--
	}
	if e.elem == nil && e.pins == 0 && c.evictedPinned != nil {
		delete(c.evictedPinned, key)
	}
}

// Size returns the number of live (non-evicted) entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// SetCapacity rehashes the cache to a new capacity, evicting from the tail
// as needed. Calling it twice with the same n is a no-op (spec §8
// idempotence).
func (c *Cache) SetCapacity(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCapacityLocked(n)
}

func (c *Cache) setCapacityLocked(n int) {
	if n < 0 {
		n = 0
	}
	if n == c.capacity && c.buckets != nil {
		return
	}
	c.capacity = n
	newBuckets := make([]*entry, bucketCount(n))

	oldBuckets := c.buckets
	c.buckets = newBuckets
	for _, head := range oldBuckets {
		for e := head; e != nil; {
			next := e.next
			e.next = nil
			c.insertChainLocked(e)
			e = next
		}
	}

	for n >= 0 && c.live > c.capacity {
		c.evictTailLocked()
	}
}
