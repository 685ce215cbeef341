// Package cache provides the trust score cache, in-process by default
// and Redis-backed when configured.
package cache

import (
	"context"
	"sync"
	"time"

	"gnsd/internal/domain"
)

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]scoreEntry
}

type scoreEntry struct {
	score     float64
	expiresAt time.Time
	hasExpiry bool
}

var _ domain.TrustScoreCache = (*MemoryCache)(nil)

func NewMemory() *MemoryCache {
	return &MemoryCache{entries: make(map[string]scoreEntry)}
}

func (c *MemoryCache) Get(_ context.Context, identityID string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[identityID]
	if !ok {
		return 0, false, nil
	}
	if entry.hasExpiry && time.Now().After(entry.expiresAt) {
		delete(c.entries, identityID)
		return 0, false, nil
	}
	return entry.score, true, nil
}

func (c *MemoryCache) Put(_ context.Context, identityID string, score float64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := scoreEntry{score: score}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[identityID] = entry
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, identityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, identityID)
	return nil
}
