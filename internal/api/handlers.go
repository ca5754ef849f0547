package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/neexbeast/weathersync/internal/storage"
	"github.com/neexbeast/weathersync/internal/syncer"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	repo     LocationRepo
	cache    SnapshotCache
	engine   SyncEngine
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(repo LocationRepo, cache SnapshotCache, engine SyncEngine, log *slog.Logger) *Handlers {
	return &Handlers{
		repo:     repo,
		cache:    cache,
		engine:   engine,
		validate: validator.New(),
		log:      log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type createLocationRequest struct {
	Name      string  `json:"name" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// locationResponse is a Location with the sync status replaced by the
// derived one (stale when the last sync is older than the freshness window).
type locationResponse struct {
	ID         uuid.UUID          `json:"id"`
	Name       string             `json:"name"`
	Latitude   float64            `json:"latitude"`
	Longitude  float64            `json:"longitude"`
	SyncStatus storage.SyncStatus `json:"syncStatus"`
	LastSyncAt *time.Time         `json:"lastSyncAt,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

func (h *Handlers) toResponse(loc *storage.Location) locationResponse {
	return locationResponse{
		ID:         loc.ID,
		Name:       loc.Name,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		SyncStatus: h.engine.EffectiveStatus(loc),
		LastSyncAt: loc.LastSyncAt,
		CreatedAt:  loc.CreatedAt,
		UpdatedAt:  loc.UpdatedAt,
	}
}

// CreateLocation handles POST /api/v1/locations.
func (h *Handlers) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	loc, err := h.repo.CreateLocation(r.Context(), req.Name, req.Latitude, req.Longitude)
	if err != nil {
		h.log.Error("create location failed", "name", req.Name, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create location")
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(loc))
}

// ListLocations handles GET /api/v1/locations.
func (h *Handlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.repo.ListLocations(r.Context())
	if err != nil {
		h.log.Error("list locations failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]locationResponse, 0, len(locs))
	for _, loc := range locs {
		out = append(out, h.toResponse(loc))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetLocation handles GET /api/v1/locations/{id}.
func (h *Handlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.locationID(w, r)
	if !ok {
		return
	}

	loc, err := h.repo.GetLocation(r.Context(), id)
	if err != nil {
		h.log.Error("get location failed", "location_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(loc))
}

// GetWeather handles GET /api/v1/locations/{id}/weather.
// Cache hit → return. Store hit → cache + return. Neither → 404.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	id, ok := h.locationID(w, r)
	if !ok {
		return
	}

	cached, err := h.cache.Get(r.Context(), id)
	if err != nil {
		h.log.Error("cache get failed", "location_id", id, "err", err)
	}
	if cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	snap, err := h.repo.LatestSnapshot(r.Context(), id)
	if err != nil {
		h.log.Error("latest snapshot lookup failed", "location_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "no weather data for this location — sync it first")
		return
	}

	if err := h.cache.Set(r.Context(), snap); err != nil {
		h.log.Warn("cache set failed after store hit", "location_id", id, "err", err)
	}

	writeJSON(w, http.StatusOK, snap)
}

// SyncLocation handles POST /api/v1/locations/{id}/sync.
// 200 on success, 409 when a sync is already in progress, 502 on failure.
func (h *Handlers) SyncLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.locationID(w, r)
	if !ok {
		return
	}

	loc, err := h.repo.GetLocation(r.Context(), id)
	if err != nil {
		h.log.Error("get location failed", "location_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "location not found")
		return
	}

	out := h.engine.SyncLocation(r.Context(), id)
	switch out.Status {
	case syncer.StatusSuccess:
		writeJSON(w, http.StatusOK, out)
	case syncer.StatusConflictingOperation:
		writeJSON(w, http.StatusConflict, out)
	default:
		writeJSON(w, http.StatusBadGateway, out)
	}
}

// SyncAll handles POST /api/v1/sync. Always 200 with one outcome per
// location; only a listing failure is an error.
func (h *Handlers) SyncAll(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.engine.SyncAll(r.Context())
	if err != nil {
		h.log.Error("sync all failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, outcomes)
}

func (h *Handlers) locationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid location id")
		return uuid.Nil, false
	}
	return id, true
}

// HealthCheck handles GET /api/v1/health.
// Pings DB and Redis; returns 200 if both ok, 503 otherwise.
type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
