/**
 * @description
 * Scheduled job implementations and the cron scheduler that runs them.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// UsageResetter zeroes the monthly call counters.
type UsageResetter interface {
	ResetMonthlyUsage(ctx context.Context) (int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	usage  UsageResetter
	logger *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(usage UsageResetter, logger *slog.Logger) *Jobs {
	return &Jobs{usage: usage, logger: logger}
}

// ResetMonthlyUsage starts a new metering period for every subscriber.
func (j *Jobs) ResetMonthlyUsage() {
	j.logger.Info("starting monthly usage reset job")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rows, err := j.usage.ResetMonthlyUsage(ctx)
	if err != nil {
		j.logger.Error("failed to reset monthly usage", "error", err)
		return
	}

	j.logger.Info("monthly usage reset job finished", "subscribers_reset", rows)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron               *cron.Cron
	jobs               *Jobs
	logger             *slog.Logger
	resetUsageSchedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *slog.Logger, resetUsageSchedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:               c,
		jobs:               jobs,
		logger:             logger,
		resetUsageSchedule: resetUsageSchedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.resetUsageSchedule, s.jobs.ResetMonthlyUsage); err != nil {
		s.logger.Error("failed to schedule usage reset job", "error", err)
		return err
	}
	s.logger.Info("scheduled usage reset job", "schedule", s.resetUsageSchedule)

	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
