// -----------------------------------------------------------------------
// Job Storage - Durable job records, event pub/sub, and bounded history
//
// Key layout:
//   job:{id}                 hash of job fields
//   job:events:{id}          pub/sub channel
//   job:events:{id}:history  list, newest first, trimmed to 100, 1h TTL
//   jobs:active              set of active job ids
// -----------------------------------------------------------------------

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

const (
	historyMaxEntries = 100
	historyTTL        = time.Hour
	// Records outlive their job timeout so late observers can still
	// read the terminal state
	recordGracePeriod = time.Hour

	activeSetKey = "jobs:active"
)

// JobStorage implements interfaces.JobStore over redis
type JobStorage struct {
	conn   *Connection
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.JobStore = (*JobStorage)(nil)

// NewJobStorage creates a job storage over an established connection
func NewJobStorage(conn *Connection, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		conn:   conn,
		logger: logger,
	}
}

func jobKey(jobID string) string {
	return "job:" + jobID
}

func eventsChannel(jobID string) string {
	return "job:events:" + jobID
}

func historyKey(jobID string) string {
	return "job:events:" + jobID + ":history"
}

// jobToHash flattens a job record into redis hash fields
func jobToHash(job *models.Job) map[string]interface{} {
	fields := map[string]interface{}{
		"job_id":          job.ID,
		"status":          string(job.Status),
		"stage":           string(job.Stage),
		"progress":        strconv.FormatFloat(job.Progress, 'f', -1, 64),
		"message":         job.Message,
		"chunks_created":  strconv.Itoa(job.ChunksCreated),
		"created_at":      strconv.FormatFloat(job.CreatedAt, 'f', -1, 64),
		"updated_at":      strconv.FormatFloat(job.UpdatedAt, 'f', -1, 64),
		"retry_count":     strconv.Itoa(job.RetryCount),
		"max_retries":     strconv.Itoa(job.MaxRetries),
		"timeout_seconds": strconv.Itoa(job.TimeoutSeconds),
	}
	if len(job.Metadata) > 0 {
		if data, err := json.Marshal(job.Metadata); err == nil {
			fields["metadata"] = string(data)
		}
	}
	return fields
}

// jobFromHash rebuilds a job record from redis hash fields
func jobFromHash(fields map[string]string) (*models.Job, error) {
	id, ok := fields["job_id"]
	if !ok || id == "" {
		return nil, fmt.Errorf("job hash missing job_id")
	}

	job := &models.Job{
		ID:      id,
		Status:  models.JobStatus(fields["status"]),
		Stage:   models.JobStage(fields["stage"]),
		Message: fields["message"],
	}
	job.Progress, _ = strconv.ParseFloat(fields["progress"], 64)
	job.ChunksCreated, _ = strconv.Atoi(fields["chunks_created"])
	job.CreatedAt, _ = strconv.ParseFloat(fields["created_at"], 64)
	job.UpdatedAt, _ = strconv.ParseFloat(fields["updated_at"], 64)
	job.RetryCount, _ = strconv.Atoi(fields["retry_count"])
	job.MaxRetries, _ = strconv.Atoi(fields["max_retries"])
	job.TimeoutSeconds, _ = strconv.Atoi(fields["timeout_seconds"])

	if raw, ok := fields["metadata"]; ok && raw != "" {
		metadata := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &metadata); err == nil {
			job.Metadata = metadata
		}
	}

	return job, nil
}

// SaveJob writes the record, active membership, and TTL in one
// transactional pipeline
func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	ttl := time.Duration(job.TimeoutSeconds)*time.Second + recordGracePeriod

	pipe := s.conn.Client().TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID), jobToHash(job))
	pipe.SAdd(ctx, activeSetKey, job.ID)
	pipe.Expire(ctx, jobKey(job.ID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns the job record or models.ErrNotFound
func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	fields, err := s.conn.Client().HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, models.ErrNotFound
	}
	return jobFromHash(fields)
}

// UpdateJob overwrites the mutable fields of an existing record
func (s *JobStorage) UpdateJob(ctx context.Context, job *models.Job) error {
	if err := s.conn.Client().HSet(ctx, jobKey(job.ID), jobToHash(job)).Err(); err != nil {
		return fmt.Errorf("failed to update job %s: %w", job.ID, err)
	}
	return nil
}

// DeleteJob removes the record, its history, and its active membership
func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	pipe := s.conn.Client().TxPipeline()
	pipe.Del(ctx, jobKey(jobID))
	pipe.Del(ctx, historyKey(jobID))
	pipe.SRem(ctx, activeSetKey, jobID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	return nil
}

// RemoveFromActive drops the active-set membership only
func (s *JobStorage) RemoveFromActive(ctx context.Context, jobID string) error {
	if err := s.conn.Client().SRem(ctx, activeSetKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to remove job %s from active set: %w", jobID, err)
	}
	return nil
}

// ActiveJobIDs lists the members of the active set
func (s *JobStorage) ActiveJobIDs(ctx context.Context) ([]string, error) {
	ids, err := s.conn.Client().SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read active set: %w", err)
	}
	return ids, nil
}

// ActiveCount returns the size of the active set
func (s *JobStorage) ActiveCount(ctx context.Context) (int, error) {
	count, err := s.conn.Client().SCard(ctx, activeSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return int(count), nil
}

// PublishEvent appends to the history ring and then publishes on the
// job channel. History first: a subscriber that connects between the
// two operations replays the event rather than missing it.
func (s *JobStorage) PublishEvent(ctx context.Context, event *models.JobEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event for job %s: %w", event.JobID, err)
	}

	pipe := s.conn.Client().TxPipeline()
	pipe.LPush(ctx, historyKey(event.JobID), data)
	pipe.LTrim(ctx, historyKey(event.JobID), 0, historyMaxEntries-1)
	pipe.Expire(ctx, historyKey(event.JobID), historyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append event history for job %s: %w", event.JobID, err)
	}

	if err := s.conn.Client().Publish(ctx, eventsChannel(event.JobID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event for job %s: %w", event.JobID, err)
	}
	return nil
}

// EventHistory returns the retained events, oldest first
func (s *JobStorage) EventHistory(ctx context.Context, jobID string) ([]*models.JobEvent, error) {
	entries, err := s.conn.Client().LRange(ctx, historyKey(jobID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event history for job %s: %w", jobID, err)
	}

	// The list is newest first; reverse into publish order
	events := make([]*models.JobEvent, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		var event models.JobEvent
		if err := json.Unmarshal([]byte(entries[i]), &event); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Skipping undecodable history entry")
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Subscribe opens a pub/sub subscription on the job channel and
// forwards decoded events until ctx is cancelled
func (s *JobStorage) Subscribe(ctx context.Context, jobID string) (<-chan *models.JobEvent, error) {
	pubsub := s.conn.Client().Subscribe(ctx, eventsChannel(jobID))

	// Confirm the subscription before returning so callers never miss
	// events published after Subscribe returns
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to job %s: %w", jobID, err)
	}

	out := make(chan *models.JobEvent, 64)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event := decodeEvent(msg, s.logger)
				if event == nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func decodeEvent(msg *redis.Message, logger arbor.ILogger) *models.JobEvent {
	var event models.JobEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping undecodable event")
		return nil
	}
	return &event
}

// Ping checks store connectivity
func (s *JobStorage) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the underlying connection
func (s *JobStorage) Close() error {
	return s.conn.Close()
}
