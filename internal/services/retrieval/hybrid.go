package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// HybridRetriever fuses dense and lexical results. Each candidate set
// is normalized by its own maximum score before the weighted merge, so
// the two score scales never dominate one another.
type HybridRetriever struct {
	dense       interfaces.Retriever
	lexical     interfaces.Retriever
	denseWeight float64
	bm25Weight  float64
	logger      arbor.ILogger
}

var _ interfaces.Retriever = (*HybridRetriever)(nil)

// NewHybridRetriever creates the fusion retriever
func NewHybridRetriever(dense, lexical interfaces.Retriever, denseWeight, bm25Weight float64, logger arbor.ILogger) *HybridRetriever {
	if denseWeight <= 0 && bm25Weight <= 0 {
		denseWeight, bm25Weight = 0.7, 0.3
	}
	return &HybridRetriever{
		dense:       dense,
		lexical:     lexical,
		denseWeight: denseWeight,
		bm25Weight:  bm25Weight,
		logger:      logger,
	}
}

func (r *HybridRetriever) Name() string {
	return "hybrid"
}

// Search fetches 2x top_k candidates from each side, merges by text
// identity, and returns the best top_k by fused score
func (r *HybridRetriever) Search(ctx context.Context, query string, topK int) ([]*models.RetrievalResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	fetchK := topK * 2

	denseResults, err := r.dense.Search(ctx, query, fetchK)
	if err != nil {
		return nil, fmt.Errorf("dense side failed: %w", err)
	}

	lexicalResults, err := r.lexical.Search(ctx, query, fetchK)
	if err != nil {
		return nil, fmt.Errorf("lexical side failed: %w", err)
	}

	type candidate struct {
		result *models.RetrievalResult
		fused  float64
	}
	merged := make(map[string]*candidate)

	for _, result := range denseResults {
		merged[result.Text] = &candidate{
			result: &models.RetrievalResult{Text: result.Text, Page: result.Page},
			fused:  r.denseWeight * normalizedScore(result, denseResults),
		}
	}
	for _, result := range lexicalResults {
		contribution := r.bm25Weight * normalizedScore(result, lexicalResults)
		if existing, ok := merged[result.Text]; ok {
			existing.fused += contribution
			if existing.result.Page == 0 {
				existing.result.Page = result.Page
			}
			continue
		}
		merged[result.Text] = &candidate{
			result: &models.RetrievalResult{Text: result.Text, Page: result.Page},
			fused:  contribution,
		}
	}

	candidates := make([]*candidate, 0, len(merged))
	for _, c := range merged {
		c.result.Score = c.fused
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].fused != candidates[j].fused {
			return candidates[i].fused > candidates[j].fused
		}
		// Tie-break on text for a stable ordering across runs
		return candidates[i].result.Text < candidates[j].result.Text
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]*models.RetrievalResult, len(candidates))
	for i, c := range candidates {
		results[i] = c.result
	}

	r.logger.Debug().
		Int("dense_hits", len(denseResults)).
		Int("lexical_hits", len(lexicalResults)).
		Int("fused", len(results)).
		Msg("Hybrid retrieval completed")
	return results, nil
}

// normalizedScore divides by the set's maximum score. An all-zero or
// empty set normalizes to zero.
func normalizedScore(result *models.RetrievalResult, set []*models.RetrievalResult) float64 {
	var max float64
	for _, r := range set {
		if r.Score > max {
			max = r.Score
		}
	}
	if max <= 0 {
		return 0
	}
	return result.Score / max
}
