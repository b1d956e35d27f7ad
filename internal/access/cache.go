package access

import (
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	result  CheckResult
	expires int64 // epoch milliseconds
}

// resultCache is an in-memory map with lazy per-read expiry. There is no
// background sweeper and no size bound; TTL expiry and explicit invalidation
// are the only eviction paths. Concurrent batch checks may read and upsert
// the same key; writes are idempotent last-write-wins.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResultCache(now func() time.Time) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		now:     now,
	}
}

// get returns the cached result when present and unexpired. Expired entries
// are treated as absent and removed.
func (c *resultCache) get(key string) (CheckResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return CheckResult{}, false
	}
	if entry.expires <= c.now().UnixMilli() {
		c.mu.Lock()
		if stale, ok := c.entries[key]; ok && stale.expires <= c.now().UnixMilli() {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return CheckResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) put(key string, result CheckResult, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		result:  result,
		expires: c.now().Add(ttl).UnixMilli(),
	}
	c.mu.Unlock()
}

// clearPrefix removes every entry whose key starts with the prefix; used for
// per-user invalidation via the "{email}:" key scheme.
func (c *resultCache) clearPrefix(prefix string) {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *resultCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func (c *resultCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
