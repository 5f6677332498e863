package models

// IngestRequest starts an ingest job. Content is either the raw
// document or an http(s) URL to fetch it from.
type IngestRequest struct {
	Content      string       `json:"content" validate:"required"`
	DocumentType DocumentType `json:"document_type" validate:"required,oneof=text html markdown pdf"`
}

// IngestResponse acknowledges job creation
type IngestResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	JobID         string `json:"job_id"`
	ChunksCreated int    `json:"chunks_created"`
}

// JobStatusResponse is the snapshot returned by the status endpoint
type JobStatusResponse struct {
	JobID         string    `json:"job_id"`
	Status        JobStatus `json:"status"`
	Stage         JobStage  `json:"stage"`
	Progress      float64   `json:"progress"`
	Message       string    `json:"message"`
	ChunksCreated int       `json:"chunks_created"`
	CreatedAt     float64   `json:"created_at"`
	UpdatedAt     float64   `json:"updated_at"`
}

// ActiveJobsResponse lists in-flight jobs
type ActiveJobsResponse struct {
	Jobs  []*JobStatusResponse `json:"jobs"`
	Total int                  `json:"total"`
}

// QueryRequest asks a question over the ingested corpus
type QueryRequest struct {
	Question string `json:"question" validate:"required,min=1"`
}

// QueryResponse carries the synthesized answer and its sources
type QueryResponse struct {
	Answer        string                 `json:"answer"`
	Sources       []RetrievalResult      `json:"sources"`
	RetrieverUsed string                 `json:"retriever_used"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ErrorResponse is the JSON body for HTTP error statuses
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// StatusFromJob converts a job record to its API representation
func StatusFromJob(job *Job) *JobStatusResponse {
	return &JobStatusResponse{
		JobID:         job.ID,
		Status:        job.Status,
		Stage:         job.Stage,
		Progress:      job.Progress,
		Message:       job.Message,
		ChunksCreated: job.ChunksCreated,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}
