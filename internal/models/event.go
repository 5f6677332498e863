package models

// JobEventType classifies events on a job's event channel
type JobEventType string

const (
	EventJobCreated  JobEventType = "job_created"
	EventJobUpdated  JobEventType = "job_updated"
	EventStreamError JobEventType = "stream_error"
)

// JobEvent is one entry on a job's pub/sub channel and history ring.
// EventID values are monotonically ordered per job and usable by
// clients for resume-after-disconnect.
type JobEvent struct {
	Type          JobEventType `json:"type"`
	JobID         string       `json:"job_id"`
	Status        JobStatus    `json:"status,omitempty"`
	Stage         JobStage     `json:"stage,omitempty"`
	Progress      float64      `json:"progress"`
	Message       string       `json:"message,omitempty"`
	ChunksCreated int          `json:"chunks_created"`
	Timestamp     float64      `json:"timestamp"`
	EventID       string       `json:"event_id"`
}

// EventFromJob builds an event snapshot of the job's current state
func EventFromJob(eventType JobEventType, job *Job, eventID string, timestamp float64) *JobEvent {
	return &JobEvent{
		Type:          eventType,
		JobID:         job.ID,
		Status:        job.Status,
		Stage:         job.Stage,
		Progress:      job.Progress,
		Message:       job.Message,
		ChunksCreated: job.ChunksCreated,
		Timestamp:     timestamp,
		EventID:       eventID,
	}
}

// IsTerminal reports whether the event marks the end of a job's stream
func (e *JobEvent) IsTerminal() bool {
	return e.Type == EventJobUpdated && e.Status.IsTerminal()
}
