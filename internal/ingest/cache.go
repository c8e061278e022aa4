package ingest

import (
	"sync"
	"time"

	"github.com/mhaseeb/pindiaqi/internal/aqi"
)

// FetchCache holds the last successful raw fetch for a bounded time so a
// flaky upstream does not blank the dashboard between polls. The cache lives
// with the fetch collaborator; the normalizer itself never caches and treats
// every invocation as possibly stale or fresh.
type FetchCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	table     aqi.RawTable
	fetchedAt time.Time
	hits      int
	misses    int
}

func NewFetchCache(ttl time.Duration) *FetchCache {
	return &FetchCache{ttl: ttl}
}

// Get returns the cached table if it is still within the TTL.
func (c *FetchCache) Get() (aqi.RawTable, bool) {
	c.mu.RLock()
	table, fetchedAt := c.table, c.fetchedAt
	c.mu.RUnlock()

	if fetchedAt.IsZero() || time.Since(fetchedAt) >= c.ttl {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return aqi.RawTable{}, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return table, true
}

// Put stores a fresh fetch result.
func (c *FetchCache) Put(table aqi.RawTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = table
	c.fetchedAt = time.Now()
}

// Stats returns hit and miss counts.
func (c *FetchCache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
