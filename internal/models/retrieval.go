package models

// RetrievalResult is one scored hit from a retriever.
// Score semantics are retriever-specific: cosine similarity for dense,
// BM25 for lexical, a convex combination of normalized scores for
// hybrid, and the cross-encoder logit after reranking.
type RetrievalResult struct {
	Text          string   `json:"text"`
	Page          int      `json:"page,omitempty"`
	Score         float64  `json:"score"`
	OriginalScore *float64 `json:"original_score,omitempty"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
}
