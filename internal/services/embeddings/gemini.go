// -----------------------------------------------------------------------
// Embedding Service - Gemini-backed text embeddings with L2
// normalization so cosine similarity reduces to a dot product
// -----------------------------------------------------------------------

package embeddings

import (
	"context"
	"fmt"
	"math"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// GeminiService embeds text through the Gemini API
type GeminiService struct {
	config *common.EmbeddingConfig
	logger arbor.ILogger
	client *genai.Client
}

// Compile-time interface assertion
var _ interfaces.EmbeddingService = (*GeminiService)(nil)

// NewGeminiService creates a Gemini embedding provider
func NewGeminiService(ctx context.Context, config *common.EmbeddingConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini embeddings (set via GOOGLE_API_KEY, RESPONDEO_EMBEDDING_API_KEY, or embedding.api_key in config)")
	}
	if config.Model == "" {
		config.Model = "gemini-embedding-001"
	}
	if config.Dimension <= 0 {
		config.Dimension = 1536
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Int("dimension", config.Dimension).
		Msg("Gemini embedding service initialized")

	return &GeminiService{config: config, logger: logger, client: client}, nil
}

// EmbedBatch embeds all texts in one API call and L2-normalizes the
// returned vectors
func (s *GeminiService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("text %d is empty: %w", i, models.ErrValidation)
		}
	}

	outputDim := int32(s.config.Dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	result, err := s.client.Models.EmbedContent(ctx, s.config.Model, contents, embeddingConfig)
	if err != nil {
		s.logger.Error().Err(err).Int("batch_size", len(texts)).Msg("Gemini embedding call failed")
		return nil, fmt.Errorf("%w: %v", models.ErrProvider, err)
	}

	if result == nil || len(result.Embeddings) != len(texts) {
		got := 0
		if result != nil {
			got = len(result.Embeddings)
		}
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrProvider, len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range result.Embeddings {
		if len(embedding.Values) != s.config.Dimension {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, expected %d",
				models.ErrProvider, i, len(embedding.Values), s.config.Dimension)
		}
		vectors[i] = Normalize(embedding.Values)
	}

	return vectors, nil
}

// Dimension returns the fixed vector dimension
func (s *GeminiService) Dimension() int {
	return s.config.Dimension
}

// Provider names the active backend
func (s *GeminiService) Provider() string {
	return "gemini"
}

// Normalize scales the vector to unit length. Zero vectors are
// returned unchanged.
func Normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vector
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
