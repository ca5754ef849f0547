// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to start.
type Config struct {
	DatabaseURL string
	RedisURL    string
	BearerToken string
	Port        string

	// Weather source client.
	FetchTimeout        time.Duration
	FetchMaxRetries     int
	FetchInitialBackoff time.Duration
	FetchMaxBackoff     time.Duration

	// Sync engine.
	SyncWorkers        int
	SyncInterval       time.Duration
	FreshnessThreshold time.Duration
	SnapshotRetention  time.Duration
	CacheTTL           time.Duration

	// Per-caller limit on manual sync triggers.
	RateLimit       int
	RateLimitWindow time.Duration

	// Conflict detection tolerances.
	ConflictTempJump     float64
	ConflictPrecipJump   float64
	ConflictSeverityJump int
	ConflictPlausibleGap time.Duration
}

// Load reads configuration from the environment. A missing .env file is not
// an error; missing required variables are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getenvDefault("PORT", "8080"),
	}

	var err error
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.RedisURL, err = requireEnv("REDIS_URL"); err != nil {
		return nil, err
	}
	if cfg.BearerToken, err = requireEnv("BEARER_TOKEN"); err != nil {
		return nil, err
	}

	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchMaxRetries, err = getenvInt("FETCH_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.FetchInitialBackoff, err = getenvDuration("FETCH_INITIAL_BACKOFF", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.FetchMaxBackoff, err = getenvDuration("FETCH_MAX_BACKOFF", 8*time.Second); err != nil {
		return nil, err
	}

	if cfg.SyncWorkers, err = getenvInt("SYNC_WORKERS", 5); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = getenvDuration("SYNC_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.FreshnessThreshold, err = getenvDuration("FRESHNESS_THRESHOLD", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SnapshotRetention, err = getenvDuration("SNAPSHOT_RETENTION", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}

	if cfg.RateLimit, err = getenvInt("RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = getenvDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}

	if cfg.ConflictTempJump, err = getenvFloat("CONFLICT_TEMP_JUMP", 10); err != nil {
		return nil, err
	}
	if cfg.ConflictPrecipJump, err = getenvFloat("CONFLICT_PRECIP_JUMP", 25); err != nil {
		return nil, err
	}
	if cfg.ConflictSeverityJump, err = getenvInt("CONFLICT_SEVERITY_JUMP", 3); err != nil {
		return nil, err
	}
	if cfg.ConflictPlausibleGap, err = getenvDuration("CONFLICT_PLAUSIBLE_GAP", 3*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return v, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
