package resolve

import (
	"sync"
	"time"

	"github.com/nathanplyles/oblivion/types"
)

// DefaultCacheSize bounds the URL cache; oldest entries are evicted
// first once the bound is reached.
const DefaultCacheSize = 1024

type cacheEntry struct {
	res   types.Resolution
	added time.Time
	expAt time.Time
}

// Cache maps video ids to resolved URLs with per-entry TTLs. It is the
// only shared mutable state in the resolution core; safe for
// concurrent use, per-identifier atomicity only.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	max     int

	now func() time.Time // test hook
}

// NewCache creates a Cache holding at most max entries. max <= 0 uses
// DefaultCacheSize.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		max:     max,
		now:     time.Now,
	}
}

// Get returns the cached resolution for id. Expired entries are
// dropped and reported as misses.
func (c *Cache) Get(id string) (types.Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return types.Resolution{}, false
	}
	if c.now().After(e.expAt) {
		delete(c.entries, id)
		return types.Resolution{}, false
	}
	return e.res, true
}

// Put stores res under id for ttl. A non-positive ttl is a no-op: the
// strategy asked for its results not to be cached.
func (c *Cache) Put(id string, res types.Resolution, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.max {
		c.evictOldestLocked()
	}
	now := c.now()
	c.entries[id] = cacheEntry{res: res, added: now, expAt: now.Add(ttl)}
}

// Invalidate drops the entry for id, forcing the next request to
// re-resolve. Called when the relay discovers a cached URL went stale.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len returns the number of cached entries, counting expired ones not
// yet reaped.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range c.entries {
		if oldestID == "" || e.added.Before(oldest) {
			oldestID = id
			oldest = e.added
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}
