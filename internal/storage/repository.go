package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/weathersync/internal/weather"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access for the location registry and the
// append-only snapshot store.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// ---- location registry ----

const locationColumns = `id, name, latitude, longitude, sync_status, last_sync_at, created_at, updated_at`

// CreateLocation registers a new location with status never_synced.
func (r *Repository) CreateLocation(ctx context.Context, name string, latitude, longitude float64) (*Location, error) {
	loc := &Location{
		ID:         uuid.New(),
		Name:       name,
		Latitude:   latitude,
		Longitude:  longitude,
		SyncStatus: StatusNeverSynced,
	}

	const q = `
		INSERT INTO locations (id, name, latitude, longitude, sync_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, q, loc.ID, loc.Name, loc.Latitude, loc.Longitude, loc.SyncStatus).
		Scan(&loc.CreatedAt, &loc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting location %s: %w", name, err)
	}

	return loc, nil
}

// GetLocation retrieves a location by id. Returns nil, nil when not found.
func (r *Repository) GetLocation(ctx context.Context, id uuid.UUID) (*Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`

	loc, err := scanLocation(r.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying location %s: %w", id, err)
	}

	return loc, nil
}

// ListLocations returns all registered locations ordered by creation time.
func (r *Repository) ListLocations(ctx context.Context) ([]*Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations ORDER BY created_at`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var locs []*Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location row: %w", err)
		}
		locs = append(locs, loc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating location rows: %w", err)
	}

	return locs, nil
}

// ClaimSync atomically moves the location to in_progress, but only from a
// non-in_progress state. The compare-and-set runs on the stored status, so at
// most one caller wins even across service instances sharing the database.
// Returns false when another sync already holds the claim.
func (r *Repository) ClaimSync(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `
		UPDATE locations
		SET sync_status = $2, updated_at = NOW()
		WHERE id = $1 AND sync_status <> $2
	`

	tag, err := r.q.Exec(ctx, q, id, StatusInProgress)
	if err != nil {
		return false, fmt.Errorf("claiming sync for location %s: %w", id, err)
	}

	return tag.RowsAffected() == 1, nil
}

// ReleaseSync moves the location from in_progress to the given terminal
// status. A release against a location not in_progress is a no-op.
func (r *Repository) ReleaseSync(ctx context.Context, id uuid.UUID, to SyncStatus) error {
	const q = `
		UPDATE locations
		SET sync_status = $2, updated_at = NOW()
		WHERE id = $1 AND sync_status = $3
	`

	if _, err := r.q.Exec(ctx, q, id, to, StatusInProgress); err != nil {
		return fmt.Errorf("releasing sync for location %s: %w", id, err)
	}

	return nil
}

// SetLastSyncAt records the timestamp of the last successful sync.
func (r *Repository) SetLastSyncAt(ctx context.Context, id uuid.UUID, t time.Time) error {
	const q = `UPDATE locations SET last_sync_at = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.q.Exec(ctx, q, id, t); err != nil {
		return fmt.Errorf("setting last sync time for location %s: %w", id, err)
	}

	return nil
}

// ---- snapshot store ----

// AppendSnapshot persists one immutable snapshot. Snapshots are never updated
// after this insert.
func (r *Repository) AppendSnapshot(ctx context.Context, s *Snapshot) error {
	dataJSON, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("marshaling snapshot data for location %s: %w", s.LocationID, err)
	}

	const q = `
		INSERT INTO weather_snapshots (location_id, data, fetched_at, conflict_detected, conflict_description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err = r.q.QueryRow(ctx, q, s.LocationID, dataJSON, s.FetchedAt, s.ConflictDetected, s.ConflictDescription).
		Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("appending snapshot for location %s: %w", s.LocationID, err)
	}

	return nil
}

// LatestSnapshot returns the most recent snapshot for a location, or nil, nil
// when none exists yet.
func (r *Repository) LatestSnapshot(ctx context.Context, locationID uuid.UUID) (*Snapshot, error) {
	const q = `
		SELECT id, location_id, data, fetched_at, conflict_detected, conflict_description
		FROM weather_snapshots
		WHERE location_id = $1
		ORDER BY fetched_at DESC
		LIMIT 1
	`

	s, err := scanSnapshot(r.q.QueryRow(ctx, q, locationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest snapshot for location %s: %w", locationID, err)
	}

	return s, nil
}

// ListSnapshots returns up to limit snapshots for a location, newest first.
func (r *Repository) ListSnapshots(ctx context.Context, locationID uuid.UUID, limit int) ([]*Snapshot, error) {
	const q = `
		SELECT id, location_id, data, fetched_at, conflict_detected, conflict_description
		FROM weather_snapshots
		WHERE location_id = $1
		ORDER BY fetched_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, q, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots for location %s: %w", locationID, err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		snaps = append(snaps, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	return snaps, nil
}

// DeleteSnapshotsBefore removes snapshots fetched before cutoff (retention
// pruning) and reports how many were deleted.
func (r *Repository) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM weather_snapshots WHERE fetched_at < $1`

	tag, err := r.q.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots before %s: %w", cutoff, err)
	}

	return tag.RowsAffected(), nil
}

// ---- row scanning ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	err := row.Scan(
		&loc.ID,
		&loc.Name,
		&loc.Latitude,
		&loc.Longitude,
		&loc.SyncStatus,
		&loc.LastSyncAt,
		&loc.CreatedAt,
		&loc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var s Snapshot
	var dataJSON []byte

	err := row.Scan(
		&s.ID,
		&s.LocationID,
		&dataJSON,
		&s.FetchedAt,
		&s.ConflictDetected,
		&s.ConflictDescription,
	)
	if err != nil {
		return nil, err
	}

	var reading weather.Reading
	if err := json.Unmarshal(dataJSON, &reading); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot data: %w", err)
	}
	s.Data = reading

	return &s, nil
}
