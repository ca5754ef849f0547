package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/neexbeast/weathersync/internal/storage"
	"github.com/neexbeast/weathersync/internal/syncer"
)

// LocationRepo defines the storage operations needed by handlers.
type LocationRepo interface {
	CreateLocation(ctx context.Context, name string, latitude, longitude float64) (*storage.Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*storage.Location, error)
	ListLocations(ctx context.Context) ([]*storage.Location, error)
	LatestSnapshot(ctx context.Context, locationID uuid.UUID) (*storage.Snapshot, error)
}

// SnapshotCache defines the cache operations needed by handlers.
type SnapshotCache interface {
	Get(ctx context.Context, locationID uuid.UUID) (*storage.Snapshot, error)
	Set(ctx context.Context, snap *storage.Snapshot) error
}

// SyncEngine defines the sync operations needed by handlers.
type SyncEngine interface {
	SyncLocation(ctx context.Context, id uuid.UUID) syncer.Outcome
	SyncAll(ctx context.Context) ([]syncer.Outcome, error)
	EffectiveStatus(loc *storage.Location) storage.SyncStatus
}
