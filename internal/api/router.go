package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/neexbeast/weathersync/internal/ratelimit"
)

// NewRouter builds and returns the Chi router with all routes configured.
// The health endpoint is unauthenticated; everything else requires bearer
// auth. A global per-IP limit of 60 requests per minute covers the whole API;
// the sync routes carry an additional fixed-window budget so manual sync
// triggers cannot monopolize the weather source.
func NewRouter(handlers *Handlers, token string, db dbPinger, redisClient redisPinger, limiter *ratelimit.Limiter, syncLimit int, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redisClient, log))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))

		r.Post("/api/v1/locations", handlers.CreateLocation)
		r.Get("/api/v1/locations", handlers.ListLocations)
		r.Get("/api/v1/locations/{id}", handlers.GetLocation)
		r.Get("/api/v1/locations/{id}/weather", handlers.GetWeather)

		r.Group(func(r chi.Router) {
			r.Use(SyncRateLimit(limiter, syncLimit))
			r.Post("/api/v1/locations/{id}/sync", handlers.SyncLocation)
			r.Post("/api/v1/sync", handlers.SyncAll)
		})
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
