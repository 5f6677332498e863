// -----------------------------------------------------------------------
// Retrievers - dense, lexical, hybrid fusion, and cross-encoder
// reranking over the indexed corpus
// -----------------------------------------------------------------------

package retrieval

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// DenseRetriever embeds the query and searches the vector index
type DenseRetriever struct {
	embedder   interfaces.EmbeddingService
	vectors    interfaces.VectorStorage
	collection string
	logger     arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.Retriever = (*DenseRetriever)(nil)

// NewDenseRetriever creates a cosine-similarity retriever
func NewDenseRetriever(embedder interfaces.EmbeddingService, vectors interfaces.VectorStorage, collection string, logger arbor.ILogger) *DenseRetriever {
	return &DenseRetriever{
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
		logger:     logger,
	}
}

func (r *DenseRetriever) Name() string {
	return "dense"
}

// Search embeds the query and returns the nearest chunks
func (r *DenseRetriever) Search(ctx context.Context, query string, topK int) ([]*models.RetrievalResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	queryVectors, err := r.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(queryVectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", models.ErrProvider, len(queryVectors))
	}

	results, err := r.vectors.Search(r.collection, queryVectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	r.logger.Debug().Int("hits", len(results)).Int("top_k", topK).Msg("Dense retrieval completed")
	return results, nil
}
