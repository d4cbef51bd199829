package repository

import (
	"context"
	"sync"
	"time"

	"github.com/venadolabs/chanbind/domains/capability"
)

// MemoryCapabilityCache is the default snapshot cache. Data is lost on
// restart, which only costs one extra capability fetch.
type MemoryCapabilityCache struct {
	mu       sync.RWMutex
	snapshot *capability.Snapshot
	expireAt time.Time
}

func NewMemoryCapabilityCache() *MemoryCapabilityCache {
	return &MemoryCapabilityCache{}
}

func (c *MemoryCapabilityCache) Get(ctx context.Context) (*capability.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil || time.Now().After(c.expireAt) {
		return nil, nil
	}
	snap := *c.snapshot
	return &snap, nil
}

func (c *MemoryCapabilityCache) Set(ctx context.Context, snapshot *capability.Snapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := *snapshot
	c.snapshot = &snap
	c.expireAt = time.Now().Add(ttl)
	return nil
}

func (c *MemoryCapabilityCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	return nil
}
