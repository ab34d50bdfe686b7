// Package scheduler triggers periodic grid refreshes for every configured
// city.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/Deiviidsito/backend-nasa/internal/ingestion"
)

// Scheduler drives the ingestion manager on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	manager   *ingestion.Manager
	interval  time.Duration
}

// New creates a scheduler that refreshes all cities every interval.
func New(manager *ingestion.Manager, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		manager:   manager,
		interval:  interval,
	}
}

// Start schedules the periodic refresh and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		slog.Info("scheduler: running refresh cycle")
		started := time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()
		s.manager.RefreshAll(ctx)

		slog.Info("scheduler: refresh cycle complete", "took", time.Since(started))
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
