package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/embeddings"
	"github.com/ternarybob/respondeo/internal/services/index"
)

// stubRetriever returns canned results and records the requested top_k
type stubRetriever struct {
	name    string
	results []*models.RetrievalResult
	err     error
	lastK   int
}

func (s *stubRetriever) Name() string { return s.name }

func (s *stubRetriever) Search(ctx context.Context, query string, topK int) ([]*models.RetrievalResult, error) {
	s.lastK = topK
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > topK {
		return s.results[:topK], nil
	}
	return s.results, nil
}

// stubVectorStorage serves a fixed result set for dense retrieval
type stubVectorStorage struct {
	results []*models.RetrievalResult
}

func (s *stubVectorStorage) EnsureCollection(string, int) error { return nil }
func (s *stubVectorStorage) Upsert(string, []*models.VectorRecord) error {
	return nil
}
func (s *stubVectorStorage) Search(collection string, vector []float32, limit int) ([]*models.RetrievalResult, error) {
	if len(s.results) > limit {
		return s.results[:limit], nil
	}
	return s.results, nil
}
func (s *stubVectorStorage) Count(string) (int, error) { return len(s.results), nil }
func (s *stubVectorStorage) Close() error              { return nil }

func hit(text string, score float64) *models.RetrievalResult {
	return &models.RetrievalResult{Text: text, Score: score}
}

func TestDenseRetriever_Search(t *testing.T) {
	vectors := &stubVectorStorage{results: []*models.RetrievalResult{
		hit("closest chunk", 0.95),
		hit("second chunk", 0.60),
	}}
	dense := NewDenseRetriever(embeddings.NewMockService(32), vectors, "documents", common.GetLogger())

	results, err := dense.Search(context.Background(), "some query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "closest chunk", results[0].Text)
	assert.Equal(t, "dense", dense.Name())
}

func TestBM25Retriever_Search(t *testing.T) {
	idx := index.NewBM25Index(nil)
	idx.Add([]string{"python programming guide", "cooking recipes"}, nil)

	retriever := NewBM25Retriever(idx)
	assert.Equal(t, "bm25", retriever.Name())

	results, err := retriever.Search(context.Background(), "python", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Text, "python")
}

func TestHybridRetriever_FusesWeightedScores(t *testing.T) {
	dense := &stubRetriever{name: "dense", results: []*models.RetrievalResult{
		hit("shared", 0.9),
		hit("dense only", 0.8),
	}}
	lexical := &stubRetriever{name: "bm25", results: []*models.RetrievalResult{
		hit("shared", 5.0),
		hit("lexical only", 4.0),
	}}

	hybrid := NewHybridRetriever(dense, lexical, 0.7, 0.3, common.GetLogger())
	results, err := hybrid.Search(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Both sides fetch twice the requested top_k
	assert.Equal(t, 6, dense.lastK)
	assert.Equal(t, 6, lexical.lastK)

	// "shared" holds the max on both sides: 0.7*1.0 + 0.3*1.0
	assert.Equal(t, "shared", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	// Dense-only candidate: 0.7 * (0.8/0.9)
	assert.Equal(t, "dense only", results[1].Text)
	assert.InDelta(t, 0.7*0.8/0.9, results[1].Score, 1e-9)

	// Lexical-only candidate: 0.3 * (4.0/5.0)
	assert.Equal(t, "lexical only", results[2].Text)
	assert.InDelta(t, 0.3*4.0/5.0, results[2].Score, 1e-9)
}

func TestHybridRetriever_EmptySides(t *testing.T) {
	dense := &stubRetriever{name: "dense"}
	lexical := &stubRetriever{name: "bm25"}

	hybrid := NewHybridRetriever(dense, lexical, 0.7, 0.3, common.GetLogger())
	results, err := hybrid.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridRetriever_SideFailure(t *testing.T) {
	dense := &stubRetriever{name: "dense", err: errors.New("embed failed")}
	lexical := &stubRetriever{name: "bm25"}

	hybrid := NewHybridRetriever(dense, lexical, 0.7, 0.3, common.GetLogger())
	_, err := hybrid.Search(context.Background(), "query", 5)
	assert.Error(t, err)
}

func TestRerankRetriever_PassThroughSmallPool(t *testing.T) {
	base := &stubRetriever{name: "hybrid", results: []*models.RetrievalResult{
		hit("only one", 0.5),
	}}

	rerank := NewRerankRetriever(base, OverlapScorer{}, 20, common.GetLogger())
	assert.Equal(t, "hybrid_rerank", rerank.Name())

	results, err := rerank.Search(context.Background(), "query", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Pool fit inside top_k, so no rescoring happened
	assert.Nil(t, results[0].RerankScore)
	assert.Nil(t, results[0].OriginalScore)
	assert.Equal(t, 20, base.lastK)
}

func TestRerankRetriever_Reorders(t *testing.T) {
	base := &stubRetriever{name: "hybrid", results: []*models.RetrievalResult{
		hit("unrelated filler words", 0.9),
		hit("exact query match", 0.5),
		hit("more filler text", 0.4),
	}}

	rerank := NewRerankRetriever(base, OverlapScorer{}, 20, common.GetLogger())
	results, err := rerank.Search(context.Background(), "exact query match", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "exact query match", results[0].Text)
	require.NotNil(t, results[0].OriginalScore)
	assert.Equal(t, 0.5, *results[0].OriginalScore)
	require.NotNil(t, results[0].RerankScore)
	assert.Equal(t, *results[0].RerankScore, results[0].Score)
}

type failingEncoder struct{}

func (failingEncoder) Score(context.Context, string, []string) ([]float64, error) {
	return nil, errors.New("scorer offline")
}

func TestRerankRetriever_FallsBackOnEncoderError(t *testing.T) {
	base := &stubRetriever{name: "dense", results: []*models.RetrievalResult{
		hit("first", 0.9),
		hit("second", 0.8),
		hit("third", 0.7),
	}}

	rerank := NewRerankRetriever(base, failingEncoder{}, 20, common.GetLogger())
	results, err := rerank.Search(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Text)
	assert.Equal(t, "second", results[1].Text)
}

func TestHTTPCrossEncoder_Score(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "which doc", req.Query)

		scores := make([]float64, len(req.Documents))
		for i := range scores {
			scores[i] = float64(i)
		}
		json.NewEncoder(w).Encode(scoreResponse{Scores: scores})
	}))
	defer server.Close()

	encoder := NewHTTPCrossEncoder(server.URL, "cross-encoder/ms-marco", common.GetLogger())
	scores, err := encoder.Score(context.Background(), "which doc", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, scores)
}

func TestHTTPCrossEncoder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	encoder := NewHTTPCrossEncoder(server.URL, "", common.GetLogger())
	_, err := encoder.Score(context.Background(), "q", []string{"doc"})
	assert.ErrorIs(t, err, models.ErrProvider)
}

func TestOverlapScorer(t *testing.T) {
	scores, err := OverlapScorer{}.Score(context.Background(), "red green", []string{
		"red green blue",
		"purple orange",
	})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, scores[0], 1e-9)
	assert.Equal(t, 0.0, scores[1])
}

func newTestRegistry(t *testing.T, rerankEnabled bool) *Registry {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Rerank.Enabled = rerankEnabled

	idx := index.NewBM25Index(nil)
	return NewRegistry(embeddings.NewMockService(32), &stubVectorStorage{}, idx, config, common.GetLogger())
}

func TestRegistry_Names(t *testing.T) {
	registry := newTestRegistry(t, false)
	assert.Equal(t, []string{"bm25", "dense", "hybrid"}, registry.Names())

	registry = newTestRegistry(t, true)
	assert.Equal(t, []string{"bm25", "bm25_rerank", "dense", "dense_rerank", "hybrid", "hybrid_rerank"}, registry.Names())
}

func TestRegistry_Get(t *testing.T) {
	registry := newTestRegistry(t, false)

	for _, name := range registry.Names() {
		retriever, err := registry.Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, retriever.Name())
	}

	_, err := registry.Get("unknown")
	assert.Error(t, err)
}

func TestRegistry_AutoWrapsWhenRerankEnabled(t *testing.T) {
	registry := newTestRegistry(t, true)

	retriever, err := registry.Get("hybrid")
	require.NoError(t, err)
	assert.Equal(t, "hybrid_rerank", retriever.Name())

	// Explicit rerank names resolve to the same wrapping
	retriever, err = registry.Get("hybrid_rerank")
	require.NoError(t, err)
	assert.Equal(t, "hybrid_rerank", retriever.Name())
}

func TestRegistry_RerankRequiresEnablement(t *testing.T) {
	registry := newTestRegistry(t, false)

	_, err := registry.Get("hybrid_rerank")
	assert.Error(t, err)
}

var _ interfaces.VectorStorage = (*stubVectorStorage)(nil)
