package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// JobOrchestrator is the lifecycle API over the job store
type JobOrchestrator interface {
	// Create admits a new job or fails with models.ErrAdmissionDenied
	// when the active set is at the concurrency ceiling
	Create(ctx context.Context, timeoutSeconds, maxRetries int) (*models.Job, error)

	// Get returns the job or models.ErrNotFound
	Get(ctx context.Context, jobID string) (*models.Job, error)

	// Update applies the patch, refreshes updated_at, and publishes a
	// job_updated event. Terminal states never revert.
	Update(ctx context.Context, jobID string, patch *models.JobPatch) (bool, error)

	// ListActive returns active jobs, most recently updated first
	ListActive(ctx context.Context, limit int) ([]*models.Job, error)

	// Subscribe yields events published after the call; the stream
	// closes after a terminal job_updated
	Subscribe(ctx context.Context, jobID string) (<-chan *models.JobEvent, error)

	// Cleanup removes the job record, history, and active membership
	Cleanup(ctx context.Context, jobID string) (bool, error)

	// CleanupOlderThan removes terminal jobs idle longer than the
	// threshold and returns the count removed
	CleanupOlderThan(ctx context.Context, hours int) (int, error)

	// Health reports store connectivity and activity
	Health(ctx context.Context) *models.JobHealth
}

// EmbeddingService turns text into unit vectors
type EmbeddingService interface {
	// EmbedBatch embeds all texts in one provider call. Every returned
	// vector is L2-normalized.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed vector dimension
	Dimension() int

	// Provider names the active backend
	Provider() string
}

// LLMService generates answers from a grounded prompt
type LLMService interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
	Close() error
}

// LexicalIndex is the in-process keyword index over ingested chunks
type LexicalIndex interface {
	// Add extends the corpus. Writes are serialized by the caller's
	// single-writer discipline; readers see the new snapshot atomically.
	Add(texts []string, metadata []map[string]interface{})

	// Search scores the query against the corpus and returns hits with
	// score > 0, best first
	Search(query string, topK int) []*models.RetrievalResult

	// Size returns the corpus document count
	Size() int
}

// Retriever is the common search capability over the indexed corpus
type Retriever interface {
	Name() string
	Search(ctx context.Context, query string, topK int) ([]*models.RetrievalResult, error)
}

// CrossEncoder scores (query, document) pairs for reranking
type CrossEncoder interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// PDFExtractor turns PDF bytes into page-marked text
type PDFExtractor interface {
	ExtractText(ctx context.Context, content []byte) (string, error)
	PageCount(ctx context.Context, content []byte) (int, error)
}

// MetricsRegistry is the single process-wide counter/histogram/gauge
// surface; the wire format is whatever the exporter renders
type MetricsRegistry interface {
	IncCounter(name string, labels map[string]string, delta float64)
	SetGauge(name string, labels map[string]string, value float64)
	ObserveHistogram(name string, labels map[string]string, value float64)
	Snapshot() map[string]interface{}
}
