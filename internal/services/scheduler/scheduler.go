// -----------------------------------------------------------------------
// Maintenance Scheduler - periodic cleanup of stale jobs and SSE
// connections
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/services/sse"
)

// Scheduler runs the periodic maintenance sweep
type Scheduler struct {
	orchestrator interfaces.JobOrchestrator
	streams      *sse.Manager
	ageHours     int
	cron         *cron.Cron
	logger       arbor.ILogger
}

// NewScheduler creates the maintenance scheduler
func NewScheduler(orchestrator interfaces.JobOrchestrator, streams *sse.Manager, ageHours int, logger arbor.ILogger) *Scheduler {
	if ageHours <= 0 {
		ageHours = 24
	}
	return &Scheduler{
		orchestrator: orchestrator,
		streams:      streams,
		ageHours:     ageHours,
		cron:         cron.New(cron.WithSeconds()),
		logger:       logger,
	}
}

// Start registers the sweep on the cron schedule
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		// Default: every 10 minutes
		schedule = "0 */10 * * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runMaintenance); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Int("age_hours", s.ageHours).
		Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// RunNow triggers an immediate sweep
func (s *Scheduler) RunNow() {
	go s.runMaintenance()
}

func (s *Scheduler) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := s.orchestrator.CleanupOlderThan(ctx, s.ageHours)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Stale job cleanup failed")
	}

	stale := s.streams.SweepStale()

	s.logger.Debug().
		Int("jobs_removed", removed).
		Int("connections_removed", stale).
		Msg("Maintenance sweep completed")
}
