package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// RerankRetriever wraps a base retriever with a cross-encoder second
// stage. It over-fetches candidates, rescores them against the query,
// and keeps the best top_k. Encoder failures degrade to the base
// ordering rather than failing the query.
type RerankRetriever struct {
	base       interfaces.Retriever
	encoder    interfaces.CrossEncoder
	candidates int
	logger     arbor.ILogger
}

var _ interfaces.Retriever = (*RerankRetriever)(nil)

// NewRerankRetriever wraps base with cross-encoder rescoring
func NewRerankRetriever(base interfaces.Retriever, encoder interfaces.CrossEncoder, candidates int, logger arbor.ILogger) *RerankRetriever {
	if candidates <= 0 {
		candidates = 20
	}
	return &RerankRetriever{
		base:       base,
		encoder:    encoder,
		candidates: candidates,
		logger:     logger,
	}
}

func (r *RerankRetriever) Name() string {
	return r.base.Name() + "_rerank"
}

func (r *RerankRetriever) Search(ctx context.Context, query string, topK int) ([]*models.RetrievalResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	fetchK := r.candidates
	if fetchK < topK {
		fetchK = topK
	}

	results, err := r.base.Search(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}

	// Nothing to reorder when the candidate pool already fits
	if len(results) <= topK {
		return results, nil
	}

	docs := make([]string, len(results))
	for i, result := range results {
		docs[i] = result.Text
	}

	scores, err := r.encoder.Score(ctx, query, docs)
	if err != nil || len(scores) != len(results) {
		if err == nil {
			err = fmt.Errorf("%w: got %d scores for %d candidates", models.ErrProvider, len(scores), len(results))
		}
		r.logger.Warn().Err(err).Str("retriever", r.Name()).Msg("Rerank failed, falling back to base ordering")
		return results[:topK], nil
	}

	for i, result := range results {
		original := result.Score
		rerank := scores[i]
		result.OriginalScore = &original
		result.RerankScore = &rerank
		result.Score = rerank
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	return results[:topK], nil
}
