// Package sweep runs duplicate cleanup on a cron schedule.
package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/immich-dedup/pkg/dedup"
)

// Runner executes one cleanup run.
type Runner interface {
	Run(ctx context.Context, opts dedup.Options) (*dedup.Report, error)
}

// Scheduler manages periodic cleanup runs
type Scheduler struct {
	spec    string
	opts    dedup.Options
	timeout time.Duration
	runner  Runner
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler that runs runner with opts on the standard
// 5-field cron spec. A zero timeout leaves runs unbounded.
func NewScheduler(spec string, opts dedup.Options, timeout time.Duration, runner Runner) *Scheduler {
	return &Scheduler{
		spec:    spec,
		opts:    opts,
		timeout: timeout,
		runner:  runner,
		cron:    cron.New(),
	}
}

// Start starts the scheduler. An empty spec leaves it stopped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Warn().Msg("Sweep scheduler already running")
		return nil
	}

	if s.spec == "" {
		log.Info().Msg("No sweep schedule configured, scheduler not started")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	log.Info().
		Str("cron_expression", s.spec).
		Bool("dry_run", s.opts.DryRun).
		Bool("check_manual", s.opts.CheckManual).
		Dur("timeout", s.timeout).
		Msg("Sweep scheduler started")

	return nil
}

// Stop stops the scheduler and waits for a sweep in progress to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false

	log.Info().Msg("Sweep scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Timeout returns the bound on a single scheduled run, zero when unbounded.
func (s *Scheduler) Timeout() time.Duration {
	return s.timeout
}

// Next returns the time of the next scheduled sweep, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if !s.IsRunning() || len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunNow triggers a sweep immediately with the scheduled options.
func (s *Scheduler) RunNow(ctx context.Context) (*dedup.Report, error) {
	log.Info().Msg("Running duplicate sweep on demand")
	return s.runner.Run(ctx, s.opts)
}

// runSweep is called by the cron scheduler
func (s *Scheduler) runSweep() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log.Info().Msg("Starting scheduled duplicate sweep")

	report, err := s.runner.Run(ctx, s.opts)
	switch {
	case errors.Is(err, dedup.ErrRunInProgress):
		log.Warn().Msg("Skipping scheduled sweep, a cleanup run is already in progress")
		return
	case err != nil:
		event := log.Error().Err(err)
		if report != nil {
			event = event.Str("run_id", report.RunID).Int("deleted", len(report.Deleted))
		}
		event.Msg("Scheduled duplicate sweep failed")
		return
	}

	planned := 0
	if report.Plan != nil {
		planned = len(report.Plan.IDs)
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("planned", planned).
		Int("deleted", len(report.Deleted)).
		Bool("dry_run", report.DryRun).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Scheduled duplicate sweep completed")
}
