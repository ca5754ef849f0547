package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/neexbeast/weathersync/internal/weather"
)

// SyncStatus is the persisted synchronization state of a location.
// StatusStale is derived at read time, never written.
type SyncStatus string

const (
	StatusNeverSynced SyncStatus = "never_synced"
	StatusInProgress  SyncStatus = "in_progress"
	StatusSuccess     SyncStatus = "success"
	StatusFailed      SyncStatus = "failed"
	StatusStale       SyncStatus = "stale"
)

// Location is a user-registered place whose weather is kept in sync.
// Invariant: at most one sync may hold StatusInProgress per location at any
// instant; the claim is a compare-and-set on the stored status so it holds
// across service instances sharing the database.
type Location struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	SyncStatus SyncStatus `json:"syncStatus"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Snapshot is one immutable weather reading persisted for a location.
// Created exactly once per successful sync, never mutated, eventually
// removed by the retention pruning job.
type Snapshot struct {
	ID                  int64           `json:"id"`
	LocationID          uuid.UUID       `json:"locationId"`
	Data                weather.Reading `json:"data"`
	FetchedAt           time.Time       `json:"fetchedAt"`
	ConflictDetected    bool            `json:"conflictDetected"`
	ConflictDescription *string         `json:"conflictDescription,omitempty"`
}
