// Package scheduler wires up the cron job that periodically triggers a
// full ingest cycle.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner is one ingest cycle. Implemented by pipeline.Orchestrator.
type Runner interface {
	RunOnce(ctx context.Context) error
}

// Scheduler wraps robfig/cron and manages the ingest loop. Cycles never
// overlap: the runner drives a single FTP session that must not be used
// from two goroutines, so a tick that fires while the previous cycle is
// still running is skipped, not queued.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string // cron spec, e.g. "@every 6h"
	log    zerolog.Logger

	busy sync.Mutex
}

// New creates a Scheduler that fires every intervalHours hours.
func New(runner Runner, intervalHours int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   fmt.Sprintf("@every %dh", intervalHours),
		log:    log,
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so an empty database is populated without waiting for the
// first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info().Str("spec", s.spec).Msg("cron started")

	// Run immediately on startup (non-blocking).
	go s.runCycle(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info().Msg("cron stopped")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.busy.TryLock() {
		s.log.Warn().Msg("previous ingest cycle still running, tick skipped")
		return
	}
	defer s.busy.Unlock()

	s.log.Info().Msg("ingest cycle started")

	if err := s.runner.RunOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("ingest cycle failed")
		return
	}

	s.log.Info().Msg("ingest cycle complete")
}
