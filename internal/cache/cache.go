// Package cache provides a process-wide in-memory TTL cache for the
// channel access token and resolved user profiles.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the default entry lifetime, matching the platform token's
// 15-minute validity with headroom.
const DefaultTTL = 600 * time.Second

type entry struct {
	value    any
	expireAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expireAt)
}

// Cache is a mutex-protected key/value store with per-entry TTL.
// Entries are immutable once set until they expire, so concurrent readers
// racing a writer at worst trigger a redundant upstream refetch.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the cached value for key, or false if absent or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl uses DefaultTTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	// Opportunistic prune keeps the map bounded by active keys.
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = entry{value: value, expireAt: now.Add(ttl)}
}

// Delete removes the entry for key, if any.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
