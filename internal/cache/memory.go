package cache

import (
	"context"
	"sync"
	"time"

	"github.com/divvyhq/divvy/internal/models"
)

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)

type memoryEntry struct {
	balances  *models.GroupBalances
	expiresAt time.Time
}

// MemoryCache is a process-local Cache for tests and single-node setups.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

// NewMemory creates a MemoryCache with the given TTL. A non-positive TTL
// means entries never expire.
func NewMemory(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// GetGroupBalances returns the cached report or ErrMiss.
func (c *MemoryCache) GetGroupBalances(_ context.Context, groupID string) (*models.GroupBalances, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[groupID]
	if !ok {
		return nil, ErrMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, groupID)
		return nil, ErrMiss
	}
	return entry.balances, nil
}

// SetGroupBalances stores the report under the cache TTL.
func (c *MemoryCache) SetGroupBalances(_ context.Context, groupID string, balances *models.GroupBalances) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{balances: balances}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}
	c.entries[groupID] = entry
	return nil
}

// InvalidateGroup drops the group's entry.
func (c *MemoryCache) InvalidateGroup(_ context.Context, groupID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, groupID)
	return nil
}
