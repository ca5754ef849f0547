// Package syncer orchestrates weather syncs: it claims a location, fetches a
// fresh reading, runs conflict detection against the previous snapshot, and
// persists the result. Claims are compare-and-set on the stored sync status,
// so concurrent syncs of the same location resolve to exactly one winner.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/weathersync/internal/conflict"
	"github.com/neexbeast/weathersync/internal/storage"
	"github.com/neexbeast/weathersync/internal/weather"
)

// Status is the terminal result of one sync attempt. It is distinct from the
// persisted location status: conflicting_operation means this attempt lost
// the claim and did nothing.
type Status string

const (
	StatusSuccess              Status = "success"
	StatusFailed               Status = "failed"
	StatusConflictingOperation Status = "conflicting_operation"
)

// Outcome reports the result of syncing one location.
type Outcome struct {
	LocationID       uuid.UUID  `json:"locationId"`
	Status           Status     `json:"status"`
	FetchedAt        *time.Time `json:"fetchedAt,omitempty"`
	ConflictDetected *bool      `json:"conflictDetected,omitempty"`
	ErrorMessage     string     `json:"errorMessage,omitempty"`

	Snapshot *storage.Snapshot `json:"-"`
}

// LocationRegistry is the slice of the storage layer the engine needs for
// location state.
type LocationRegistry interface {
	GetLocation(ctx context.Context, id uuid.UUID) (*storage.Location, error)
	ListLocations(ctx context.Context) ([]*storage.Location, error)
	ClaimSync(ctx context.Context, id uuid.UUID) (bool, error)
	ReleaseSync(ctx context.Context, id uuid.UUID, to storage.SyncStatus) error
	SetLastSyncAt(ctx context.Context, id uuid.UUID, t time.Time) error
}

// SnapshotStore persists and recalls snapshots.
type SnapshotStore interface {
	AppendSnapshot(ctx context.Context, s *storage.Snapshot) error
	LatestSnapshot(ctx context.Context, locationID uuid.UUID) (*storage.Snapshot, error)
}

// WeatherFetcher retrieves a current reading for coordinates.
type WeatherFetcher interface {
	Fetch(ctx context.Context, coords weather.Coordinates, units weather.Units) (*weather.Reading, error)
}

// SnapshotCache receives the latest snapshot after a successful sync.
// Caching is best effort: failures are logged, never surfaced.
type SnapshotCache interface {
	Set(ctx context.Context, snap *storage.Snapshot) error
}

// Options tunes the engine. Zero values pick sane defaults.
type Options struct {
	Workers   int           // concurrent syncs in SyncAll, default 5
	Freshness time.Duration // age after which a synced location reads as stale, default 1h
	Units     weather.Units // units requested from the weather source
	Logger    *slog.Logger
}

// Engine runs sync operations against the location registry.
type Engine struct {
	registry  LocationRegistry
	snapshots SnapshotStore
	fetcher   WeatherFetcher
	cache     SnapshotCache
	detector  *conflict.Detector

	workers   int
	freshness time.Duration
	units     weather.Units
	log       *slog.Logger
	now       func() time.Time
}

// NewEngine wires an engine. cache may be nil to disable caching.
func NewEngine(registry LocationRegistry, snapshots SnapshotStore, fetcher WeatherFetcher, cache SnapshotCache, detector *conflict.Detector, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Freshness <= 0 {
		opts.Freshness = time.Hour
	}
	if opts.Units == "" {
		opts.Units = weather.UnitsMetric
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if detector == nil {
		detector = conflict.NewDetector(conflict.DefaultThresholds())
	}

	return &Engine{
		registry:  registry,
		snapshots: snapshots,
		fetcher:   fetcher,
		cache:     cache,
		detector:  detector,
		workers:   opts.Workers,
		freshness: opts.Freshness,
		units:     opts.Units,
		log:       opts.Logger,
		now:       time.Now,
	}
}

// SyncLocation runs one full sync for a location and always returns an
// outcome, never an error. Once the claim is won the location cannot be left
// in_progress: release is deferred, survives panics, and runs on a context
// detached from the caller's cancellation.
func (e *Engine) SyncLocation(ctx context.Context, id uuid.UUID) (out Outcome) {
	out = Outcome{LocationID: id, Status: StatusFailed}

	loc, err := e.registry.GetLocation(ctx, id)
	if err != nil {
		out.ErrorMessage = fmt.Sprintf("loading location: %v", err)
		return out
	}
	if loc == nil {
		out.ErrorMessage = "location not found"
		return out
	}

	claimed, err := e.registry.ClaimSync(ctx, id)
	if err != nil {
		out.ErrorMessage = fmt.Sprintf("claiming sync: %v", err)
		return out
	}
	if !claimed {
		out.Status = StatusConflictingOperation
		out.ErrorMessage = "sync already in progress"
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic during sync", "location_id", id, "panic", r)
			out = Outcome{LocationID: id, Status: StatusFailed, ErrorMessage: fmt.Sprintf("internal error: %v", r)}
		}

		final := storage.StatusFailed
		if out.Status == StatusSuccess {
			final = storage.StatusSuccess
		}
		// Release must happen even when the caller's context is already
		// canceled, otherwise the location is stuck in_progress.
		if err := e.registry.ReleaseSync(context.WithoutCancel(ctx), id, final); err != nil {
			e.log.Error("releasing sync claim", "location_id", id, "error", err)
		}
	}()

	reading, err := e.fetcher.Fetch(ctx, weather.Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}, e.units)
	if err != nil {
		out.ErrorMessage = fmt.Sprintf("fetching weather: %v", err)
		return out
	}

	fetchedAt := e.now().UTC()

	prev, err := e.snapshots.LatestSnapshot(ctx, id)
	if err != nil {
		out.ErrorMessage = fmt.Sprintf("loading previous snapshot: %v", err)
		return out
	}

	detected, description := e.detector.Detect(previousObservation(prev), conflict.Observation{
		FetchedAt:     fetchedAt,
		Temperature:   reading.Current.Temperature,
		Precipitation: reading.Current.Precipitation,
		WeatherCode:   reading.Current.WeatherCode,
	})

	snap := &storage.Snapshot{
		LocationID:       id,
		Data:             *reading,
		FetchedAt:        fetchedAt,
		ConflictDetected: detected,
	}
	if detected {
		snap.ConflictDescription = &description
		e.log.Warn("conflict detected", "location_id", id, "description", description)
	}

	if err := e.snapshots.AppendSnapshot(ctx, snap); err != nil {
		out.ErrorMessage = fmt.Sprintf("persisting snapshot: %v", err)
		return out
	}

	if err := e.registry.SetLastSyncAt(ctx, id, fetchedAt); err != nil {
		out.ErrorMessage = fmt.Sprintf("recording sync time: %v", err)
		return out
	}

	if e.cache != nil {
		if err := e.cache.Set(context.WithoutCancel(ctx), snap); err != nil {
			e.log.Warn("caching snapshot", "location_id", id, "error", err)
		}
	}

	out.Status = StatusSuccess
	out.FetchedAt = &fetchedAt
	out.ConflictDetected = &detected
	out.Snapshot = snap
	return out
}

// SyncAll syncs every registered location concurrently and returns one
// outcome per location, in listing order. A failed location never aborts the
// others. The error is non-nil only when the listing itself fails.
func (e *Engine) SyncAll(ctx context.Context) ([]Outcome, error) {
	locs, err := e.registry.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}

	outcomes := make([]Outcome, len(locs))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, loc := range locs {
		i, loc := i, loc
		g.Go(func() error {
			outcomes[i] = e.SyncLocation(ctx, loc.ID)
			return nil
		})
	}
	_ = g.Wait()

	e.log.Info("sync all complete", "locations", len(locs))
	return outcomes, nil
}

// EffectiveStatus derives the status reported to clients. A location synced
// longer ago than the freshness window reads as stale; the stored status is
// untouched.
func (e *Engine) EffectiveStatus(loc *storage.Location) storage.SyncStatus {
	if loc.LastSyncAt == nil {
		return loc.SyncStatus
	}
	if loc.SyncStatus != storage.StatusSuccess && loc.SyncStatus != storage.StatusFailed {
		return loc.SyncStatus
	}
	if e.now().Sub(*loc.LastSyncAt) > e.freshness {
		return storage.StatusStale
	}
	return loc.SyncStatus
}

func previousObservation(prev *storage.Snapshot) *conflict.Observation {
	if prev == nil {
		return nil
	}
	return &conflict.Observation{
		FetchedAt:     prev.FetchedAt,
		Temperature:   prev.Data.Current.Temperature,
		Precipitation: prev.Data.Current.Precipitation,
		WeatherCode:   prev.Data.Current.WeatherCode,
	}
}
