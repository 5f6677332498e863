// -----------------------------------------------------------------------
// Ingestion Pipeline - runs the staged ingest flow for one job:
// fetch, chunk, embed, store, index, with progress published between
// stages
// -----------------------------------------------------------------------

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/chunker"
)

// Pipeline executes ingest jobs asynchronously
type Pipeline struct {
	orchestrator interfaces.JobOrchestrator
	fetcher      *Fetcher
	chunker      *chunker.Chunker
	embedder     interfaces.EmbeddingService
	vectors      interfaces.VectorStorage
	index        interfaces.LexicalIndex
	extractor    interfaces.PDFExtractor
	metrics      interfaces.MetricsRegistry
	collection   string
	jobTimeout   int
	maxRetries   int
	logger       arbor.ILogger
}

// NewPipeline wires the ingest stages together
func NewPipeline(
	orchestrator interfaces.JobOrchestrator,
	chunkerSvc *chunker.Chunker,
	embedder interfaces.EmbeddingService,
	vectors interfaces.VectorStorage,
	index interfaces.LexicalIndex,
	extractor interfaces.PDFExtractor,
	metricsRegistry interfaces.MetricsRegistry,
	config *common.Config,
	logger arbor.ILogger,
) *Pipeline {
	return &Pipeline{
		orchestrator: orchestrator,
		fetcher:      NewFetcher(config.Jobs.MaxRetries, logger),
		chunker:      chunkerSvc,
		embedder:     embedder,
		vectors:      vectors,
		index:        index,
		extractor:    extractor,
		metrics:      metricsRegistry,
		collection:   config.Vector.CollectionName,
		jobTimeout:   config.Jobs.DefaultTimeout,
		maxRetries:   config.Jobs.MaxRetries,
		logger:       logger,
	}
}

// Start validates admission, creates the job, and launches the worker.
// The returned job is still queued; progress arrives via status polls
// or the event stream.
func (p *Pipeline) Start(ctx context.Context, req *models.IngestRequest) (*models.Job, error) {
	if IsURL(req.Content) {
		if err := p.fetcher.validate(req.Content); err != nil {
			return nil, err
		}
	}

	job, err := p.orchestrator.Create(ctx, p.jobTimeout, p.maxRetries)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("job_id", job.ID).
		Str("document_type", string(req.DocumentType)).
		Msg("Ingest job started")

	common.SafeGo(p.logger, "ingest.run", func() {
		p.run(job.ID, req.Content, req.DocumentType)
	})

	return job, nil
}

// run executes the staged flow under the job's timeout
func (p *Pipeline) run(jobID, content string, docType models.DocumentType) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.jobTimeout)*time.Second)
	defer cancel()

	start := time.Now()

	fail := func(message string) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			message = "timeout"
		}
		p.update(jobID, &models.JobPatch{
			Status:  ptr(models.JobStatusError),
			Stage:   ptr(models.StageError),
			Message: &message,
		})
		p.metrics.IncCounter("ingest_jobs_total", map[string]string{
			"status":        "failed",
			"document_type": string(docType),
		}, 1)
		p.logger.Error().
			Str("job_id", jobID).
			Str("message", message).
			Dur("duration", time.Since(start)).
			Msg("Ingest job failed")
	}

	// Stage 1: fetch and clean
	p.update(jobID, &models.JobPatch{
		Status:   ptr(models.JobStatusRunning),
		Stage:    ptr(models.StageFetching),
		Progress: ptr(10.0),
		Message:  ptr("Fetching and cleaning content..."),
	})

	text, err := p.resolveContent(ctx, content, docType)
	if err != nil {
		fail(fmt.Sprintf("Ingestion failed: %v", err))
		return
	}
	if strings.TrimSpace(text) == "" {
		fail(models.ErrEmptyContent.Error())
		return
	}

	// Stage 2: semantic chunking
	p.update(jobID, &models.JobPatch{
		Stage:    ptr(models.StageChunking),
		Progress: ptr(20.0),
		Message:  ptr("Creating semantic chunks..."),
	})

	chunks := p.chunker.Chunk(text, docType)
	if len(chunks) == 0 {
		fail(models.ErrNoChunks.Error())
		return
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	// Stage 3: embeddings
	p.update(jobID, &models.JobPatch{
		Stage:    ptr(models.StageEmbedding),
		Progress: ptr(40.0),
		Message:  ptr(fmt.Sprintf("Creating embeddings for %d chunks...", len(chunks))),
	})

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		fail(fmt.Sprintf("Ingestion failed: %v", err))
		return
	}
	p.metrics.IncCounter("embeddings_total", nil, float64(len(vectors)))

	// Stage 4: vector store
	p.update(jobID, &models.JobPatch{
		Stage:    ptr(models.StageStoring),
		Progress: ptr(70.0),
		Message:  ptr("Storing in vector database..."),
	})

	if err := p.vectors.EnsureCollection(p.collection, p.embedder.Dimension()); err != nil {
		fail(fmt.Sprintf("Ingestion failed: %v", err))
		return
	}

	records := make([]*models.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = &models.VectorRecord{
			ID:     common.NewVectorID(),
			Vector: vectors[i],
			Payload: models.VectorPayload{
				Text:            chunk.Text,
				Page:            chunk.Page,
				ChunkIndex:      chunk.ChunkIndex,
				Title:           chunk.Title,
				Section:         chunk.Section,
				HasTitleContext: chunk.HasTitleContext(),
			},
		}
	}
	if err := p.vectors.Upsert(p.collection, records); err != nil {
		fail(fmt.Sprintf("Ingestion failed: %v", err))
		return
	}

	// Stage 5: lexical index
	p.update(jobID, &models.JobPatch{
		Stage:    ptr(models.StageIndexing),
		Progress: ptr(85.0),
		Message:  ptr("Building BM25 index..."),
	})

	metadata := make([]map[string]interface{}, len(chunks))
	for i, chunk := range chunks {
		page := chunk.Page
		if page == 0 {
			page = i + 1
		}
		metadata[i] = map[string]interface{}{
			"page":              page,
			"title":             chunk.Title,
			"section":           chunk.Section,
			"chunk_index":       chunk.ChunkIndex,
			"word_count":        chunk.WordCount,
			"has_title_context": chunk.HasTitleContext(),
		}
	}
	p.index.Add(texts, metadata)

	// Stage 6: completed
	p.update(jobID, &models.JobPatch{
		Status:        ptr(models.JobStatusSuccess),
		Stage:         ptr(models.StageCompleted),
		Progress:      ptr(100.0),
		Message:       ptr(fmt.Sprintf("Successfully ingested %d semantic chunks", len(chunks))),
		ChunksCreated: ptr(len(chunks)),
	})

	duration := time.Since(start)
	p.metrics.IncCounter("ingest_jobs_total", map[string]string{
		"status":        "success",
		"document_type": string(docType),
	}, 1)
	p.metrics.ObserveHistogram("ingest_job_duration_seconds", nil, duration.Seconds())

	p.logger.Info().
		Str("job_id", jobID).
		Int("chunks_created", len(chunks)).
		Dur("duration", duration).
		Msg("Ingest job completed")
}

// resolveContent fetches and sanitizes per document type
func (p *Pipeline) resolveContent(ctx context.Context, content string, docType models.DocumentType) (string, error) {
	if docType == models.DocumentTypePDF {
		raw, err := p.fetcher.FetchBytes(ctx, content)
		if err != nil {
			return "", err
		}
		return p.extractor.ExtractText(ctx, raw)
	}

	text, err := p.fetcher.FetchText(ctx, content)
	if err != nil {
		return "", err
	}

	if docType == models.DocumentTypeHTML {
		return SanitizeHTML(text)
	}
	return text, nil
}

// update applies a job patch on a fresh context, so terminal error
// states survive the worker's own deadline
func (p *Pipeline) update(jobID string, patch *models.JobPatch) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := p.orchestrator.Update(ctx, jobID, patch); err != nil {
		p.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to update job progress")
	}
}

func ptr[T any](v T) *T {
	return &v
}
