package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/weathersync/internal/storage"
)

const defaultTTL = time.Hour

// Connect parses redisURL, creates a client, and verifies connectivity with a ping.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

// SnapshotCache caches the latest snapshot per location so weather reads
// don't hit Postgres on every request. Entries expire after the TTL and are
// replaced on every successful sync.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a cache with the given TTL. A non-positive ttl
// falls back to one hour.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(locationID uuid.UUID) string {
	return "snapshot:" + locationID.String()
}

// Get returns the cached snapshot for a location, or nil, nil on a miss.
func (c *SnapshotCache) Get(ctx context.Context, locationID uuid.UUID) (*storage.Snapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey(locationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s from cache: %w", locationID, err)
	}

	var snap storage.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshaling cached snapshot %s: %w", locationID, err)
	}

	return &snap, nil
}

// Set stores a snapshot as the latest for its location. A nil snapshot is a
// no-op.
func (c *SnapshotCache) Set(ctx context.Context, snap *storage.Snapshot) error {
	if snap == nil {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot %s for cache: %w", snap.LocationID, err)
	}

	if err := c.client.Set(ctx, snapshotKey(snap.LocationID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing snapshot %s to cache: %w", snap.LocationID, err)
	}

	return nil
}

// Delete evicts the cached snapshot for a location. Missing keys are not an
// error.
func (c *SnapshotCache) Delete(ctx context.Context, locationID uuid.UUID) error {
	if err := c.client.Del(ctx, snapshotKey(locationID)).Err(); err != nil {
		return fmt.Errorf("deleting cached snapshot %s: %w", locationID, err)
	}
	return nil
}
