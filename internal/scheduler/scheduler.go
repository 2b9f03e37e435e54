// Package scheduler runs the background jobs: periodic ledger refreshes
// plus the weekly and monthly chat digests.
//
// Every sweep walks all stored users and skips the ineligible ones; a
// failure for one user is logged and never aborts the sweep.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"monobudget/internal/config"
	"monobudget/internal/ops"
	"monobudget/internal/reportstore"
	"monobudget/internal/userstore"
)

// Sync depths per job. Interval sweeps only need to top up recent days;
// calendar jobs re-read the full report horizon plus the comparison window.
const (
	intervalDaysBack = 2
	dailyDaysBack    = 8
	weeklyDaysBack   = 8
	monthlyDaysBack  = 32
)

const jobTimeout = 15 * time.Minute

// Jobs is the slice of the bot surface the scheduler drives.
type Jobs interface {
	Refresh(ctx context.Context, userID int64, daysBack int) error
	PostReport(ctx context.Context, userID, chatID int64, period string) error
}

// Scheduler owns the cron entries and the sweep logic.
type Scheduler struct {
	cfg     *config.Settings
	users   *userstore.Store
	jobs    Jobs
	cron    *cron.Cron
	metrics *ops.Metrics
	log     zerolog.Logger

	sleep func(time.Duration)
	randn func(n int) int
}

// New builds a Scheduler. metrics may be nil.
func New(cfg *config.Settings, users *userstore.Store, jobs Jobs, metrics *ops.Metrics, log zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.SchedTZ)
	if err != nil {
		return nil, fmt.Errorf("scheduler: bad timezone %q: %w", cfg.SchedTZ, err)
	}
	return &Scheduler{
		cfg:     cfg,
		users:   users,
		jobs:    jobs,
		cron:    cron.New(cron.WithLocation(loc)),
		metrics: metrics,
		log:     log.With().Str("component", "scheduler").Logger(),
		sleep:   time.Sleep,
		randn:   rand.Intn,
	}, nil
}

func (s *Scheduler) countFailure(job string) {
	if s.metrics != nil {
		s.metrics.JobFailures.WithLabelValues(job).Inc()
	}
}

// Start registers the cron entries and starts the runner.
func (s *Scheduler) Start() error {
	specs := []struct {
		spec string
		name string
		run  func()
	}{
		{fmt.Sprintf("@every %dm", s.cfg.SchedRefreshMinutes), "interval-refresh", func() { s.RefreshSweep(intervalDaysBack) }},
		{s.cfg.SchedDailyRefreshCron, "daily-refresh", func() { s.RefreshSweep(dailyDaysBack) }},
		{s.cfg.SchedWeeklyCron, "weekly-digest", func() { s.DigestSweep(reportstore.PeriodWeek, weeklyDaysBack) }},
		{s.cfg.SchedMonthlyCron, "monthly-digest", func() { s.DigestSweep(reportstore.PeriodMonth, monthlyDaysBack) }},
	}
	for _, e := range specs {
		if _, err := s.cron.AddFunc(e.spec, e.run); err != nil {
			return fmt.Errorf("scheduler: registering %s (%q): %w", e.name, e.spec, err)
		}
		s.log.Info().Str("job", e.name).Str("spec", e.spec).Msg("job scheduled")
	}
	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// eligible filters users the background jobs act on.
func eligible(cfg *userstore.Config) bool {
	return cfg.MonoToken != "" && cfg.AutojobsEnabled && len(cfg.SelectedAccountIDs) > 0
}

func (s *Scheduler) jitter() {
	span := s.cfg.AutoRefreshJitterMaxSec - s.cfg.AutoRefreshJitterMinSec
	wait := s.cfg.AutoRefreshJitterMinSec
	if span > 0 {
		wait += s.randn(span + 1)
	}
	if wait > 0 {
		s.sleep(time.Duration(wait) * time.Second)
	}
}

// RefreshSweep syncs every eligible user daysBack into the past.
func (s *Scheduler) RefreshSweep(daysBack int) {
	err := s.users.IterAll(func(cfg *userstore.Config) {
		if !eligible(cfg) {
			return
		}
		s.jitter()

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := s.jobs.Refresh(ctx, cfg.TelegramUserID, daysBack); err != nil {
			s.countFailure("refresh")
			s.log.Warn().Int64("user", cfg.TelegramUserID).Int("days_back", daysBack).
				Err(err).Msg("scheduled refresh failed")
		}
	})
	if err != nil {
		s.log.Error().Err(err).Msg("refresh sweep aborted")
	}
}

// DigestSweep refreshes and then posts the period report to every eligible
// user with a known chat.
func (s *Scheduler) DigestSweep(period string, daysBack int) {
	err := s.users.IterAll(func(cfg *userstore.Config) {
		if !eligible(cfg) || cfg.ChatID == 0 {
			return
		}
		s.jitter()

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := s.jobs.Refresh(ctx, cfg.TelegramUserID, daysBack); err != nil {
			s.log.Warn().Int64("user", cfg.TelegramUserID).Err(err).Msg("digest refresh failed")
			// stale cache is still better than no digest
		}
		if err := s.jobs.PostReport(ctx, cfg.TelegramUserID, cfg.ChatID, period); err != nil {
			s.countFailure("digest-" + period)
			s.log.Warn().Int64("user", cfg.TelegramUserID).Str("period", period).
				Err(err).Msg("digest post failed")
		}
	})
	if err != nil {
		s.log.Error().Str("period", period).Err(err).Msg("digest sweep aborted")
	}
}
