// Package scheduler runs periodic maintenance jobs on a cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a robfig/cron instance with second precision.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: logger,
	}
}

// Every registers job to run once per interval. Overlapping runs are skipped.
// Each run gets a context that is cancelled after one interval.
func (s *Scheduler) Every(name string, interval time.Duration, job func(ctx context.Context) error) (cron.EntryID, error) {
	if interval < time.Second {
		return 0, fmt.Errorf("scheduler: %s: interval must be at least 1s, got %v", name, interval)
	}
	spec := fmt.Sprintf("@every %ds", int(interval.Seconds()))

	return s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		s.logger.Debug("scheduled job done", "job", name, "duration", time.Since(start))
	})
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
