package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Store       StoreConfig     `toml:"store"`
	Vector      VectorConfig    `toml:"vector"`
	Embedding   EmbeddingConfig `toml:"embedding"`
	Claude      ClaudeConfig    `toml:"claude"`
	Rerank      RerankConfig    `toml:"rerank"`
	Jobs        JobsConfig      `toml:"jobs"`
	Chunking    ChunkingConfig  `toml:"chunking"`
	Query       QueryConfig     `toml:"query"`
	Limits      LimitsConfig    `toml:"limits"`
	Stream      StreamConfig    `toml:"stream"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port        int      `toml:"port"`
	Host        string   `toml:"host"`
	CORSOrigins []string `toml:"cors_origins"`
}

// StoreConfig points at the shared job store (redis-protocol URL)
type StoreConfig struct {
	URL string `toml:"url"`
}

// VectorConfig configures the vector index
type VectorConfig struct {
	Path           string `toml:"path"`            // Database directory path
	CollectionName string `toml:"collection_name"` // Collection for ingested chunks
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// EmbeddingConfig selects and configures the embedding provider
type EmbeddingConfig struct {
	Provider  string `toml:"provider"`  // "gemini" or "mock"
	Model     string `toml:"model"`     // Embedding model name
	Dimension int    `toml:"dimension"` // Vector dimension, fixed at collection creation
	APIKey    string `toml:"api_key"`
}

// ClaudeConfig contains Anthropic Claude API configuration for answer generation
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"` // Duration string, e.g. "2m"
}

// RerankConfig controls the cross-encoder rerank wrapper
type RerankConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`         // Remote scorer URL
	Model          string `toml:"model"`            // Cross-encoder model name
	TopKCandidates int    `toml:"top_k_candidates"` // Candidates fetched before reranking
}

// JobsConfig controls orchestrator admission and cleanup behavior
type JobsConfig struct {
	MaxConcurrent   int    `toml:"max_concurrent"`   // Admission ceiling for queued+running jobs
	DefaultTimeout  int    `toml:"default_timeout"`  // Job timeout in seconds
	MaxRetries      int    `toml:"max_retries"`      // Fetch retry budget per job
	CleanupSchedule string `toml:"cleanup_schedule"` // Cron schedule for maintenance
	CleanupAgeHours int    `toml:"cleanup_age_hours"`
}

// ChunkingConfig parameterizes the semantic chunker
type ChunkingConfig struct {
	ChunkSize         int  `toml:"chunk_size"`    // Target words per chunk
	ChunkOverlap      int  `toml:"chunk_overlap"` // Carried words between chunks
	RespectBoundaries bool `toml:"respect_boundaries"`
	TitleBubbling     bool `toml:"title_bubbling"`
}

// QueryConfig controls retrieval defaults and the query cache
type QueryConfig struct {
	DefaultRetriever string  `toml:"default_retriever"` // dense, bm25, hybrid, *_rerank
	DefaultTopK      int     `toml:"default_top_k"`
	DenseWeight      float64 `toml:"dense_weight"` // Hybrid fusion weights
	BM25Weight       float64 `toml:"bm25_weight"`
	CacheSize        int     `toml:"cache_size"`
	CacheTTL         string  `toml:"cache_ttl"` // Duration string
}

// LimitsConfig holds the HTTP surface protections
type LimitsConfig struct {
	RateLimitRequests int    `toml:"rate_limit_requests"` // Per IP per window
	RateLimitWindow   string `toml:"rate_limit_window"`   // Duration string
	MaxRequestSize    int64  `toml:"max_request_size"`    // Bytes
	RequestTimeout    string `toml:"request_timeout"`     // Duration string
}

// StreamConfig controls SSE behavior
type StreamConfig struct {
	HeartbeatInterval int    `toml:"heartbeat_interval"` // Seconds between heartbeats
	IdleTimeout       int    `toml:"idle_timeout"`       // Seconds before an idle subscription closes
	BearerToken       string `toml:"bearer_token"`       // Token required on the job stream route
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:        8080,
			Host:        "localhost",
			CORSOrigins: []string{"*"},
		},
		Store: StoreConfig{
			URL: "redis://localhost:6379/0",
		},
		Vector: VectorConfig{
			Path:           "./data/vectors",
			CollectionName: "documents",
		},
		Embedding: EmbeddingConfig{
			Provider:  "mock",
			Model:     "gemini-embedding-001",
			Dimension: 1536,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   1024,
			Temperature: 0.2,
			Timeout:     "2m",
		},
		Rerank: RerankConfig{
			Enabled:        false,
			TopKCandidates: 20,
		},
		Jobs: JobsConfig{
			MaxConcurrent:   10,
			DefaultTimeout:  300,
			MaxRetries:      3,
			CleanupSchedule: "0 */10 * * * *", // Every 10 minutes
			CleanupAgeHours: 24,
		},
		Chunking: ChunkingConfig{
			ChunkSize:         800,
			ChunkOverlap:      200,
			RespectBoundaries: true,
			TitleBubbling:     true,
		},
		Query: QueryConfig{
			DefaultRetriever: "hybrid",
			DefaultTopK:      5,
			DenseWeight:      0.7,
			BM25Weight:       0.3,
			CacheSize:        1000,
			CacheTTL:         "300s",
		},
		Limits: LimitsConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   "60s",
			MaxRequestSize:    10 * 1024 * 1024, // 10 MiB
			RequestTimeout:    "30s",
		},
		Stream: StreamConfig{
			HeartbeatInterval: 30,
			IdleTimeout:       300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override
// earlier ones; CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RESPONDEO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("RESPONDEO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RESPONDEO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if origins := os.Getenv("RESPONDEO_CORS_ORIGINS"); origins != "" {
		config.Server.CORSOrigins = splitAndTrim(origins)
	}

	// Job store
	if url := os.Getenv("RESPONDEO_STORE_URL"); url != "" {
		config.Store.URL = url
	}

	// Vector index
	if url := os.Getenv("RESPONDEO_VECTOR_STORE_URL"); url != "" {
		config.Vector.Path = url
	}
	if name := os.Getenv("RESPONDEO_COLLECTION_NAME"); name != "" {
		config.Vector.CollectionName = name
	}

	// Embeddings
	if provider := os.Getenv("RESPONDEO_EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = provider
	}
	if model := os.Getenv("RESPONDEO_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if key := os.Getenv("RESPONDEO_EMBEDDING_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if dim := os.Getenv("RESPONDEO_EMBEDDING_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil {
			config.Embedding.Dimension = d
		}
	}

	// Answer LLM
	if key := os.Getenv("RESPONDEO_CLAUDE_API_KEY"); key != "" {
		config.Claude.APIKey = key
	} else if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if model := os.Getenv("RESPONDEO_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// Rerank
	if enabled := os.Getenv("RESPONDEO_RERANK_ENABLED"); enabled != "" {
		config.Rerank.Enabled = enabled == "true" || enabled == "1"
	}
	if model := os.Getenv("RESPONDEO_RERANK_MODEL"); model != "" {
		config.Rerank.Model = model
	}
	if endpoint := os.Getenv("RESPONDEO_RERANK_ENDPOINT"); endpoint != "" {
		config.Rerank.Endpoint = endpoint
	}

	// Jobs
	if maxJobs := os.Getenv("RESPONDEO_MAX_CONCURRENT_JOBS"); maxJobs != "" {
		if m, err := strconv.Atoi(maxJobs); err == nil {
			config.Jobs.MaxConcurrent = m
		}
	}
	if retries := os.Getenv("RESPONDEO_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Jobs.MaxRetries = r
		}
	}

	// Query cache
	if size := os.Getenv("RESPONDEO_QUERY_CACHE_SIZE"); size != "" {
		if s, err := strconv.Atoi(size); err == nil {
			config.Query.CacheSize = s
		}
	}
	if ttl := os.Getenv("RESPONDEO_QUERY_CACHE_TTL"); ttl != "" {
		config.Query.CacheTTL = ttl
	}

	// HTTP limits
	if limit := os.Getenv("RESPONDEO_RATE_LIMIT_REQUESTS"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Limits.RateLimitRequests = l
		}
	}
	if window := os.Getenv("RESPONDEO_RATE_LIMIT_WINDOW"); window != "" {
		config.Limits.RateLimitWindow = window
	}
	if size := os.Getenv("RESPONDEO_MAX_REQUEST_SIZE"); size != "" {
		if s, err := strconv.ParseInt(size, 10, 64); err == nil {
			config.Limits.MaxRequestSize = s
		}
	}
	if timeout := os.Getenv("RESPONDEO_REQUEST_TIMEOUT"); timeout != "" {
		config.Limits.RequestTimeout = timeout
	}

	// Streaming
	if interval := os.Getenv("RESPONDEO_HEARTBEAT_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			config.Stream.HeartbeatInterval = i
		}
	}
	if token := os.Getenv("RESPONDEO_STREAM_TOKEN"); token != "" {
		config.Stream.BearerToken = token
	}

	// Logging
	if level := os.Getenv("RESPONDEO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("RESPONDEO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("RESPONDEO_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitAndTrim(output)
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string, logLevel string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
