package service

import (
	"sync"
	"time"
)

// resolutionCache is an advisory TTL cache of resolved permissions keyed by
// user ID. Entries go stale after the TTL and are dropped eagerly by
// Invalidate when an administrator changes a grant.
type resolutionCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]cacheEntry
}

type cacheEntry struct {
	res       *Resolution
	expiresAt time.Time
}

func newResolutionCache(ttl time.Duration) *resolutionCache {
	return &resolutionCache{ttl: ttl, m: make(map[string]cacheEntry)}
}

// get returns the cached resolution for userID if present and fresh.
func (c *resolutionCache) get(userID string, now time.Time) (*Resolution, bool) {
	c.mu.RLock()
	e, ok := c.m[userID]
	c.mu.RUnlock()
	if !ok || now.After(e.expiresAt) {
		return nil, false
	}
	return e.res, true
}

func (c *resolutionCache) put(userID string, res *Resolution, now time.Time) {
	c.mu.Lock()
	c.m[userID] = cacheEntry{res: res, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
}

func (c *resolutionCache) invalidate(userID string) {
	c.mu.Lock()
	delete(c.m, userID)
	c.mu.Unlock()
}
