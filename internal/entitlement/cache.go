package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/musician-app/apiserver/types"
)

// Cache stores resolved tiers per platform user id for a bounded TTL.
// Entries expire on their own; nothing invalidates them proactively.
type Cache interface {
	Get(ctx context.Context, platformUserID string) (types.Tier, bool, error)
	Set(ctx context.Context, platformUserID string, tier types.Tier, ttl time.Duration) error
}

// MemoryCache is an in-process TTL cache. Suitable for a single instance;
// multi-process deployments should use the Redis cache instead.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	tier      types.Tier
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, platformUserID string) (types.Tier, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[platformUserID]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, platformUserID)
		return "", false, nil
	}
	return entry.tier, true, nil
}

func (c *MemoryCache) Set(_ context.Context, platformUserID string, tier types.Tier, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[platformUserID] = memoryEntry{
		tier:      tier,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
