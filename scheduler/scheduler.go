package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"krisha_radar/scraper"
)

// Scheduler runs the ingestion pipeline on a cron schedule in daemon
// mode. Overlapping triggers are skipped: one run at a time.
type Scheduler struct {
	orchestrator *scraper.Orchestrator
	city         string
	cron         *cron.Cron

	mu      sync.Mutex
	running bool
}

func New(orchestrator *scraper.Orchestrator, city string) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		city:         city,
		cron:         cron.New(),
	}
}

// Start registers the cron entry and begins scheduling. The ctx given
// here cancels in-flight runs when the daemon shuts down.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		return fmt.Errorf("empty cron expression")
	}
	_, err := s.cron.AddFunc(spec, func() { s.runOnce(ctx) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	log.Info().Str("cron", spec).Str("city", s.city).Msg("scheduler started")
	s.cron.Start()
	return nil
}

// TriggerNow runs an ingestion immediately, outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn().Msg("previous ingestion still running, skipping trigger")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	run, err := s.orchestrator.Run(ctx, s.city)
	switch {
	case errors.Is(err, scraper.ErrCancelled):
		log.Warn().Str("run_id", run.RunID).Msg("scheduled ingestion cancelled")
	case err != nil:
		log.Error().Err(err).Msg("scheduled ingestion failed")
	}
}

// Stop halts scheduling and waits for a running cron callback to end.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}
