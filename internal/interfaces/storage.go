package interfaces

import (
	"context"

	"github.com/ternarybob/respondeo/internal/models"
)

// JobStore is the durable, shared record of ingest jobs. It owns the
// per-job event channel and the bounded event history used for SSE
// replay after reconnects.
type JobStore interface {
	// SaveJob writes the job record and its active-set membership in a
	// single atomic batch. The record expires timeout+3600s after the
	// write so late observers can still read the terminal state.
	SaveJob(ctx context.Context, job *models.Job) error

	// GetJob returns the job or models.ErrNotFound
	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	// UpdateJob overwrites the mutable job fields
	UpdateJob(ctx context.Context, job *models.Job) error

	// DeleteJob removes the record, its history, and its active-set
	// membership
	DeleteJob(ctx context.Context, jobID string) error

	// RemoveFromActive drops only the active-set membership
	RemoveFromActive(ctx context.Context, jobID string) error

	// ActiveJobIDs returns the ids currently in the active set
	ActiveJobIDs(ctx context.Context) ([]string, error)

	// ActiveCount returns the size of the active set
	ActiveCount(ctx context.Context) (int, error)

	// PublishEvent appends the event to the job's history ring and then
	// publishes it on the job's channel, in that order
	PublishEvent(ctx context.Context, event *models.JobEvent) error

	// EventHistory returns the retained events, oldest first
	EventHistory(ctx context.Context, jobID string) ([]*models.JobEvent, error)

	// Subscribe returns a channel of events published after the call.
	// The channel closes when ctx is cancelled.
	Subscribe(ctx context.Context, jobID string) (<-chan *models.JobEvent, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error

	Close() error
}

// VectorStorage is the ANN index over embedded chunks
type VectorStorage interface {
	// EnsureCollection creates the collection when missing. The
	// dimension is fixed at creation; a later mismatch is an error.
	EnsureCollection(name string, dimension int) error

	// Upsert writes records keyed by their uuid
	Upsert(collection string, records []*models.VectorRecord) error

	// Search returns the top limit records by cosine similarity
	Search(collection string, vector []float32, limit int) ([]*models.RetrievalResult, error)

	// Count returns the number of stored records
	Count(collection string) (int, error)

	Close() error
}
