// -----------------------------------------------------------------------
// Job Orchestrator - lifecycle API over the shared job store with
// admission control and a circuit breaker on every store call
// -----------------------------------------------------------------------

package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// Service orchestrates job lifecycles over the store
type Service struct {
	store         interfaces.JobStore
	breaker       *CircuitBreaker
	maxConcurrent int
	logger        arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.JobOrchestrator = (*Service)(nil)

// NewService creates a job orchestrator
func NewService(store interfaces.JobStore, maxConcurrent int, logger arbor.ILogger) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Service{
		store:         store,
		breaker:       NewCircuitBreaker(3, 30*time.Second),
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// withBreaker runs a store operation under the circuit breaker. While
// the breaker is open, calls fail fast with ErrStoreUnavailable.
func (s *Service) withBreaker(fn func() error) error {
	if !s.breaker.Allow() {
		return models.ErrStoreUnavailable
	}

	if err := fn(); err != nil {
		s.breaker.RecordFailure()
		return err
	}

	s.breaker.RecordSuccess()
	return nil
}

// Create admits a new job unless the queued+running count has reached
// the concurrency ceiling
func (s *Service) Create(ctx context.Context, timeoutSeconds, maxRetries int) (*models.Job, error) {
	active, err := s.activeAdmissionCount(ctx)
	if err != nil {
		return nil, err
	}
	if active >= s.maxConcurrent {
		s.logger.Warn().Int("active", active).Int("limit", s.maxConcurrent).Msg("Job admission denied")
		return nil, models.ErrAdmissionDenied
	}

	job := models.NewJob(common.NewJobID(), timeoutSeconds, maxRetries)

	if err := s.withBreaker(func() error {
		return s.store.SaveJob(ctx, job)
	}); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.publish(ctx, models.EventFromJob(models.EventJobCreated, job, common.NewEventID(), job.CreatedAt))

	s.logger.Info().Str("job_id", job.ID).Int("timeout_seconds", timeoutSeconds).Msg("Job created")
	return job, nil
}

// Get returns the job record
func (s *Service) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var job *models.Job
	var notFound bool
	err := s.withBreaker(func() error {
		var inner error
		job, inner = s.store.GetJob(ctx, jobID)
		if inner == models.ErrNotFound {
			// A missing record is an answer, not a store failure
			notFound = true
			return nil
		}
		return inner
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, models.ErrNotFound
	}
	return job, nil
}

// Update applies the patch and publishes a job_updated event. The
// store write and the publish are issued sequentially so any one
// subscriber observes updates in wall-clock order. Terminal states
// never revert.
func (s *Service) Update(ctx context.Context, jobID string, patch *models.JobPatch) (bool, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		if err == models.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	if patch.Status != nil && !job.Status.CanTransitionTo(*patch.Status) {
		s.logger.Warn().
			Str("job_id", jobID).
			Str("from", string(job.Status)).
			Str("to", string(*patch.Status)).
			Msg("Rejected job status transition")
		return false, nil
	}

	patch.Apply(job)

	if err := s.withBreaker(func() error {
		return s.store.UpdateJob(ctx, job)
	}); err != nil {
		return false, err
	}

	s.publish(ctx, models.EventFromJob(models.EventJobUpdated, job, common.NewEventID(), job.UpdatedAt))

	return true, nil
}

// ListActive returns jobs from the active set, most recently updated
// first, garbage-collecting entries whose record has expired
func (s *Service) ListActive(ctx context.Context, limit int) ([]*models.Job, error) {
	var ids []string
	if err := s.withBreaker(func() error {
		var inner error
		ids, inner = s.store.ActiveJobIDs(ctx)
		return inner
	}); err != nil {
		return nil, err
	}

	jobs := make([]*models.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.store.GetJob(ctx, id)
		if err == models.ErrNotFound {
			// Record expired; drop the dangling membership
			if remErr := s.store.RemoveFromActive(ctx, id); remErr != nil {
				s.logger.Warn().Err(remErr).Str("job_id", id).Msg("Failed to GC dangling active entry")
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].UpdatedAt > jobs[j].UpdatedAt })

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Subscribe yields events published after the call. The stream closes
// after a terminal job_updated event.
func (s *Service) Subscribe(ctx context.Context, jobID string) (<-chan *models.JobEvent, error) {
	if !s.breaker.Allow() {
		return nil, models.ErrStoreUnavailable
	}

	subCtx, cancel := context.WithCancel(ctx)

	events, err := s.store.Subscribe(subCtx, jobID)
	if err != nil {
		cancel()
		s.breaker.RecordFailure()
		return nil, err
	}
	s.breaker.RecordSuccess()

	out := make(chan *models.JobEvent, 64)
	go func() {
		defer close(out)
		defer cancel()

		for event := range events {
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
			if event.IsTerminal() {
				return
			}
		}
	}()

	return out, nil
}

// Cleanup removes the job record, history, and active membership
func (s *Service) Cleanup(ctx context.Context, jobID string) (bool, error) {
	_, err := s.Get(ctx, jobID)
	if err != nil {
		if err == models.ErrNotFound {
			return false, nil
		}
		return false, err
	}

	if err := s.withBreaker(func() error {
		return s.store.DeleteJob(ctx, jobID)
	}); err != nil {
		return false, err
	}

	s.logger.Debug().Str("job_id", jobID).Msg("Job cleaned up")
	return true, nil
}

// CleanupOlderThan removes terminal jobs whose updated_at is older than
// the threshold. Records already expired by TTL are GC'd by ListActive.
func (s *Service) CleanupOlderThan(ctx context.Context, hours int) (int, error) {
	jobs, err := s.ListActive(ctx, 0)
	if err != nil {
		return 0, err
	}

	cutoff := float64(time.Now().Add(-time.Duration(hours)*time.Hour).UnixMilli()) / 1000.0

	removed := 0
	for _, job := range jobs {
		if !job.Status.IsTerminal() || job.UpdatedAt > cutoff {
			continue
		}
		ok, err := s.Cleanup(ctx, job.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to clean up stale job")
			continue
		}
		if ok {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Int("age_hours", hours).Msg("Stale terminal jobs removed")
	}
	return removed, nil
}

// Health reports store latency, process memory, and activity
func (s *Service) Health(ctx context.Context) *models.JobHealth {
	health := &models.JobHealth{Status: "healthy"}

	start := time.Now()
	if err := s.store.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		s.logger.Warn().Err(err).Msg("Job store ping failed")
	}
	health.PingMS = float64(time.Since(start).Microseconds()) / 1000.0

	if vm, err := mem.VirtualMemory(); err == nil {
		health.MemoryUsed = vm.Used
	}

	if count, err := s.store.ActiveCount(ctx); err == nil {
		health.ActiveJobs = count
	}

	return health
}

// BreakerState exposes the breaker state for readiness reporting
func (s *Service) BreakerState() BreakerState {
	return s.breaker.State()
}

// activeAdmissionCount counts jobs in queued or running status
func (s *Service) activeAdmissionCount(ctx context.Context) (int, error) {
	jobs, err := s.ListActive(ctx, 0)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, job := range jobs {
		if job.Status == models.JobStatusQueued || job.Status == models.JobStatusRunning {
			count++
		}
	}
	return count, nil
}

// publish sends the event through the breaker; publish failures are
// logged but never fail the state change that preceded them
func (s *Service) publish(ctx context.Context, event *models.JobEvent) {
	if err := s.withBreaker(func() error {
		return s.store.PublishEvent(ctx, event)
	}); err != nil {
		s.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("Failed to publish job event")
	}
}
