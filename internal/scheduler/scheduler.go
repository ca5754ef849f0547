// Package scheduler runs the periodic background jobs: batch weather syncs
// and snapshot retention pruning.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/neexbeast/weathersync/internal/syncer"
)

// Syncer is the slice of the sync engine the scheduler drives.
type Syncer interface {
	SyncAll(ctx context.Context) ([]syncer.Outcome, error)
}

// Pruner deletes snapshots older than a cutoff.
type Pruner interface {
	DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler owns the gocron instance and the two recurring jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    Syncer
	pruner    Pruner
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
}

// New creates a Scheduler. interval controls the batch sync cadence;
// retention bounds snapshot age for the daily pruning job.
func New(engine Syncer, pruner Pruner, interval, retention time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		engine:    engine,
		pruner:    pruner,
		interval:  interval,
		retention: retention,
		log:       log,
	}
}

// Start registers the jobs and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.runSync); err != nil {
		return err
	}

	if s.pruner != nil && s.retention > 0 {
		if _, err := s.scheduler.Every(1).Day().Do(s.runPrune); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runSync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	outcomes, err := s.engine.SyncAll(ctx)
	if err != nil {
		s.log.Error("scheduled sync failed", "error", err)
		return
	}

	var failed, conflicting int
	for _, out := range outcomes {
		switch out.Status {
		case syncer.StatusFailed:
			failed++
		case syncer.StatusConflictingOperation:
			conflicting++
		}
	}
	s.log.Info("scheduled sync complete",
		"locations", len(outcomes), "failed", failed, "skipped", conflicting)
}

func (s *Scheduler) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.pruner.DeleteSnapshotsBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("snapshot pruning failed", "error", err)
		return
	}
	s.log.Info("snapshot pruning complete", "deleted", deleted, "cutoff", cutoff)
}
