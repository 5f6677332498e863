package models

import "time"

// JobStatus represents the lifecycle state of an ingest job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSuccess   JobStatus = "success"
	JobStatusError     JobStatus = "error"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true when the status admits no further transitions
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusError || s == JobStatusCancelled
}

// rank orders statuses for monotonic transition checks
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusRunning:
		return 1
	case JobStatusSuccess, JobStatusError, JobStatusCancelled:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether a transition to next is allowed.
// Transitions never move backwards and terminal states never change.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// JobStage identifies the pipeline stage a job is currently executing
type JobStage string

const (
	StageInitialized JobStage = "initialized"
	StageFetching    JobStage = "fetching"
	StageChunking    JobStage = "chunking"
	StageEmbedding   JobStage = "embedding"
	StageStoring     JobStage = "storing"
	StageIndexing    JobStage = "indexing"
	StageCompleted   JobStage = "completed"
	StageError       JobStage = "error"
)

// Job is the durable record of one ingest operation
type Job struct {
	ID             string            `json:"job_id"`
	Status         JobStatus         `json:"status"`
	Stage          JobStage          `json:"stage"`
	Progress       float64           `json:"progress"`
	Message        string            `json:"message"`
	ChunksCreated  int               `json:"chunks_created"`
	CreatedAt      float64           `json:"created_at"`
	UpdatedAt      float64           `json:"updated_at"`
	RetryCount     int               `json:"retry_count"`
	MaxRetries     int               `json:"max_retries"`
	TimeoutSeconds int               `json:"timeout_seconds"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NewJob creates a queued job with timestamps set to now
func NewJob(id string, timeoutSeconds, maxRetries int) *Job {
	now := float64(time.Now().UnixMilli()) / 1000.0
	return &Job{
		ID:             id,
		Status:         JobStatusQueued,
		Stage:          StageInitialized,
		Progress:       0,
		ChunksCreated:  0,
		CreatedAt:      now,
		UpdatedAt:      now,
		MaxRetries:     maxRetries,
		TimeoutSeconds: timeoutSeconds,
	}
}

// JobPatch carries the allowed mutable fields for an update.
// Nil pointers leave the corresponding field untouched.
type JobPatch struct {
	Status        *JobStatus
	Stage         *JobStage
	Progress      *float64
	Message       *string
	ChunksCreated *int
	RetryCount    *int
}

// Apply writes the patch onto the job and refreshes updated_at
func (p *JobPatch) Apply(job *Job) {
	if p.Status != nil {
		job.Status = *p.Status
	}
	if p.Stage != nil {
		job.Stage = *p.Stage
	}
	if p.Progress != nil {
		job.Progress = *p.Progress
	}
	if p.Message != nil {
		job.Message = *p.Message
	}
	if p.ChunksCreated != nil {
		job.ChunksCreated = *p.ChunksCreated
	}
	if p.RetryCount != nil {
		job.RetryCount = *p.RetryCount
	}
	job.UpdatedAt = float64(time.Now().UnixMilli()) / 1000.0
}

// JobHealth summarizes orchestrator and store health
type JobHealth struct {
	Status     string  `json:"status"`
	PingMS     float64 `json:"ping_ms"`
	MemoryUsed uint64  `json:"memory_used"`
	ActiveJobs int     `json:"active_jobs"`
}
