package embeddings

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
)

// NewService selects the embedding provider from configuration
func NewService(ctx context.Context, config *common.EmbeddingConfig, logger arbor.ILogger) (interfaces.EmbeddingService, error) {
	switch config.Provider {
	case "gemini":
		return NewGeminiService(ctx, config, logger)
	case "mock", "":
		logger.Warn().Int("dimension", config.Dimension).Msg("Using mock embedding provider")
		return NewMockService(config.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider '%s' (expected gemini or mock)", config.Provider)
	}
}
