package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/venadolabs/chanbind/domains/capability"
	"github.com/venadolabs/chanbind/infrastructure/valkey"
)

// ValkeyCapabilityCache shares the capability snapshot between instances so
// only one of them hits the gateway per TTL window.
type ValkeyCapabilityCache struct {
	client *valkey.Client
	key    string
}

func NewValkeyCapabilityCache(client *valkey.Client) *ValkeyCapabilityCache {
	return &ValkeyCapabilityCache{
		client: client,
		key:    client.Key("capability", "snapshot"),
	}
}

func (c *ValkeyCapabilityCache) Get(ctx context.Context) (*capability.Snapshot, error) {
	cmd := c.client.Inner().B().Get().Key(c.key).Build()
	data, err := c.client.Inner().Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkey.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read capability snapshot: %w", err)
	}

	var snap capability.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capability snapshot: %w", err)
	}
	return &snap, nil
}

func (c *ValkeyCapabilityCache) Set(ctx context.Context, snapshot *capability.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal capability snapshot: %w", err)
	}

	cmd := c.client.Inner().B().Set().Key(c.key).Value(string(data)).Ex(ttl).Build()
	if err := c.client.Inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to store capability snapshot: %w", err)
	}
	return nil
}

func (c *ValkeyCapabilityCache) Invalidate(ctx context.Context) error {
	cmd := c.client.Inner().B().Del().Key(c.key).Build()
	return c.client.Inner().Do(ctx, cmd).Error()
}
