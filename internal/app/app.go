// -----------------------------------------------------------------------
// Application wiring - stores, services, and handlers assembled in
// dependency order
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/handlers"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/services/answer"
	"github.com/ternarybob/respondeo/internal/services/chunker"
	"github.com/ternarybob/respondeo/internal/services/embeddings"
	"github.com/ternarybob/respondeo/internal/services/index"
	"github.com/ternarybob/respondeo/internal/services/ingest"
	"github.com/ternarybob/respondeo/internal/services/jobs"
	"github.com/ternarybob/respondeo/internal/services/llm"
	"github.com/ternarybob/respondeo/internal/services/metrics"
	"github.com/ternarybob/respondeo/internal/services/pdf"
	"github.com/ternarybob/respondeo/internal/services/retrieval"
	"github.com/ternarybob/respondeo/internal/services/scheduler"
	"github.com/ternarybob/respondeo/internal/services/sse"
	badgerstore "github.com/ternarybob/respondeo/internal/storage/badger"
	redisstore "github.com/ternarybob/respondeo/internal/storage/redis"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	StoreConn *redisstore.Connection
	JobStore  *redisstore.JobStorage
	VectorDB  *badgerstore.BadgerDB
	Vectors   *badgerstore.VectorStorage

	// Services
	Orchestrator *jobs.Service
	Index        *index.BM25Index
	Embedder     interfaces.EmbeddingService
	LLM          interfaces.LLMService
	Metrics      *metrics.Registry
	Retrievers   *retrieval.Registry
	Composer     *answer.Composer
	Extractor    *pdf.Extractor
	Pipeline     *ingest.Pipeline
	Streams      *sse.Manager
	Scheduler    *scheduler.Scheduler

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	IngestHandler *handlers.IngestHandler
	QueryHandler  *handlers.QueryHandler
	StreamHandler *handlers.StreamHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStores(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.Scheduler.Start(cfg.Jobs.CleanupSchedule); err != nil {
		return nil, fmt.Errorf("failed to start maintenance scheduler: %w", err)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("embedding_provider", app.Embedder.Provider()).
		Str("answer_model", app.LLM.Model()).
		Str("default_retriever", cfg.Query.DefaultRetriever).
		Msg("Application initialization complete")

	return app, nil
}

// initStores connects the shared job store and opens the vector index
func (a *App) initStores(ctx context.Context) error {
	conn, err := redisstore.Connect(ctx, a.Config.Store.URL, a.Logger)
	if err != nil {
		return fmt.Errorf("job store connection failed: %w", err)
	}
	a.StoreConn = conn
	a.JobStore = redisstore.NewJobStorage(conn, a.Logger)

	db, err := badgerstore.NewBadgerDB(a.Logger, &a.Config.Vector)
	if err != nil {
		return fmt.Errorf("vector store open failed: %w", err)
	}
	a.VectorDB = db
	a.Vectors = badgerstore.NewVectorStorage(db, a.Logger)

	a.Logger.Debug().
		Str("store_url", a.Config.Store.URL).
		Str("vector_path", a.Config.Vector.Path).
		Msg("Storage layer initialized")
	return nil
}

// initServices builds the service graph over the stores
func (a *App) initServices(ctx context.Context) error {
	a.Metrics = metrics.NewRegistry()
	a.Orchestrator = jobs.NewService(a.JobStore, a.Config.Jobs.MaxConcurrent, a.Logger)
	a.Index = index.NewBM25Index(a.Logger)

	embedder, err := embeddings.NewService(ctx, &a.Config.Embedding, a.Logger)
	if err != nil {
		return fmt.Errorf("embedding provider init failed: %w", err)
	}
	a.Embedder = embedder

	if err := a.Vectors.EnsureCollection(a.Config.Vector.CollectionName, embedder.Dimension()); err != nil {
		return fmt.Errorf("collection init failed: %w", err)
	}

	if a.Config.Claude.APIKey != "" {
		claudeService, err := llm.NewClaudeService(&a.Config.Claude, a.Logger)
		if err != nil {
			return fmt.Errorf("claude init failed: %w", err)
		}
		a.LLM = claudeService
	} else {
		a.Logger.Warn().Msg("No Claude API key configured, answers use the mock provider")
		a.LLM = llm.NewMockService()
	}

	a.Retrievers = retrieval.NewRegistry(a.Embedder, a.Vectors, a.Index, a.Config, a.Logger)

	cacheTTL, err := time.ParseDuration(a.Config.Query.CacheTTL)
	if err != nil {
		cacheTTL = 300 * time.Second
	}
	a.Composer = answer.NewComposer(a.LLM, a.Config.Query.CacheSize, cacheTTL, a.Logger)

	a.Extractor = pdf.NewExtractor(a.Logger)

	chunkerSvc := chunker.New(chunker.Options{
		ChunkSize:         a.Config.Chunking.ChunkSize,
		ChunkOverlap:      a.Config.Chunking.ChunkOverlap,
		RespectBoundaries: a.Config.Chunking.RespectBoundaries,
		TitleBubbling:     a.Config.Chunking.TitleBubbling,
	}, a.Logger)

	a.Pipeline = ingest.NewPipeline(
		a.Orchestrator,
		chunkerSvc,
		a.Embedder,
		a.Vectors,
		a.Index,
		a.Extractor,
		a.Metrics,
		a.Config,
		a.Logger,
	)

	a.Streams = sse.NewManager(a.JobStore, a.Orchestrator, a.Metrics, a.Config.Stream.HeartbeatInterval, a.Logger)
	a.Scheduler = scheduler.NewScheduler(a.Orchestrator, a.Streams, a.Config.Jobs.CleanupAgeHours, a.Logger)

	return nil
}

// initHandlers builds the HTTP handler set
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Orchestrator, a.Vectors, a.Metrics, a.Composer, a.Config.Vector.CollectionName, a.Logger)
	a.IngestHandler = handlers.NewIngestHandler(a.Pipeline, a.Orchestrator, a.Logger)
	a.QueryHandler = handlers.NewQueryHandler(a.Retrievers, a.Composer, a.Config.Query, a.Logger)
	a.StreamHandler = handlers.NewStreamHandler(a.Streams, a.Config.Stream.BearerToken, a.Logger)
}

// Close shuts down services and stores in reverse dependency order
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.LLM != nil {
		if err := a.LLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("LLM provider close failed")
		}
	}

	if a.Vectors != nil {
		if err := a.Vectors.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Vector store close failed")
		}
	}

	if a.StoreConn != nil {
		if err := a.StoreConn.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Job store close failed")
		}
	}

	a.Logger.Info().Msg("Application shut down")
	return nil
}
