package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/llm"
)

type fixedRetriever struct {
	name    string
	results []*models.RetrievalResult
	calls   int
}

func (r *fixedRetriever) Name() string { return r.name }

func (r *fixedRetriever) Search(ctx context.Context, query string, topK int) ([]*models.RetrievalResult, error) {
	r.calls++
	return r.results, nil
}

func source(text string, score float64) *models.RetrievalResult {
	return &models.RetrievalResult{Text: text, Score: score}
}

func TestComposer_Answer(t *testing.T) {
	mock := llm.NewMockService()
	mock.Response = "The capital is Paris."

	composer := NewComposer(mock, 10, time.Minute, common.GetLogger())
	retriever := &fixedRetriever{name: "hybrid", results: []*models.RetrievalResult{
		source("Paris is the capital of France.", 0.9),
	}}

	response, err := composer.Answer(context.Background(), retriever, "What is the capital of France?", 5)
	require.NoError(t, err)
	assert.Equal(t, "The capital is Paris.", response.Answer)
	assert.Equal(t, "hybrid", response.RetrieverUsed)
	require.Len(t, response.Sources, 1)
	assert.Contains(t, mock.LastPrompt(), "SOURCES:")
	assert.Contains(t, mock.LastPrompt(), "QUESTION: What is the capital of France?")
}

func TestComposer_NoSources(t *testing.T) {
	mock := llm.NewMockService()
	composer := NewComposer(mock, 10, time.Minute, common.GetLogger())
	retriever := &fixedRetriever{name: "dense"}

	response, err := composer.Answer(context.Background(), retriever, "anything", 5)
	require.NoError(t, err)
	assert.Equal(t, "I couldn't find relevant information to answer your question.", response.Answer)
	assert.Empty(t, response.Sources)

	// No prompt ever reached the model
	assert.Equal(t, 0, mock.PromptCount())
}

func TestComposer_CacheHit(t *testing.T) {
	mock := llm.NewMockService()
	mock.Response = "Cached answer."

	composer := NewComposer(mock, 10, time.Minute, common.GetLogger())
	retriever := &fixedRetriever{name: "hybrid", results: []*models.RetrievalResult{
		source("some supporting text", 0.8),
	}}

	first, err := composer.Answer(context.Background(), retriever, "  Repeated QUESTION ", 5)
	require.NoError(t, err)

	// Case and surrounding whitespace normalize to the same key
	second, err := composer.Answer(context.Background(), retriever, "repeated question", 5)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, retriever.calls)
	assert.Equal(t, 1, mock.PromptCount())

	stats := composer.CacheStats()
	assert.Equal(t, int64(1), stats["hits"])
}

func TestComposer_DistinctTopKMisses(t *testing.T) {
	mock := llm.NewMockService()
	mock.Response = "answer"

	composer := NewComposer(mock, 10, time.Minute, common.GetLogger())
	retriever := &fixedRetriever{name: "hybrid", results: []*models.RetrievalResult{
		source("text", 0.5),
	}}

	_, err := composer.Answer(context.Background(), retriever, "question", 3)
	require.NoError(t, err)
	_, err = composer.Answer(context.Background(), retriever, "question", 5)
	require.NoError(t, err)

	assert.Equal(t, 2, retriever.calls)
}

func TestComposer_ProviderErrorNotCached(t *testing.T) {
	mock := llm.NewMockService()
	mock.Err = errors.New("rate limited")

	composer := NewComposer(mock, 10, time.Minute, common.GetLogger())
	retriever := &fixedRetriever{name: "dense", results: []*models.RetrievalResult{
		source("text", 0.5),
	}}

	response, err := composer.Answer(context.Background(), retriever, "question", 5)
	require.NoError(t, err)
	assert.Contains(t, response.Answer, "Error generating answer with mock-llm")

	// The failure was not cached; the next call retries retrieval
	mock.Err = nil
	mock.Response = "recovered"
	response, err = composer.Answer(context.Background(), retriever, "question", 5)
	require.NoError(t, err)
	assert.Equal(t, "recovered", response.Answer)
	assert.Equal(t, 2, retriever.calls)
}

func TestBuildPrompt_TruncatesSources(t *testing.T) {
	long := strings.Repeat("x", 800)
	sources := make([]*models.RetrievalResult, 7)
	for i := range sources {
		sources[i] = source(long, 0.5)
	}

	prompt := BuildPrompt("q", sources)
	assert.Contains(t, prompt, "Source 5")
	assert.NotContains(t, prompt, "Source 6")
	assert.NotContains(t, prompt, strings.Repeat("x", 501))
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := NewCache(10, 100*time.Millisecond)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("k", &models.QueryResponse{Answer: "a"})
	require.NotNil(t, cache.Get("k"))

	now = now.Add(200 * time.Millisecond)
	assert.Nil(t, cache.Get("k"))
}

func TestCache_LRUEviction(t *testing.T) {
	cache := NewCache(2, time.Minute)

	cache.Set("a", &models.QueryResponse{Answer: "a"})
	cache.Set("b", &models.QueryResponse{Answer: "b"})

	// Touch "a" so "b" becomes least recently used
	require.NotNil(t, cache.Get("a"))
	cache.Set("c", &models.QueryResponse{Answer: "c"})

	assert.NotNil(t, cache.Get("a"))
	assert.Nil(t, cache.Get("b"))
	assert.NotNil(t, cache.Get("c"))
}

func TestKey_Normalization(t *testing.T) {
	assert.Equal(t, Key("  What? ", "hybrid", 5), Key("what?", "hybrid", 5))
	assert.NotEqual(t, Key("what?", "hybrid", 5), Key("what?", "dense", 5))
	assert.NotEqual(t, Key("what?", "hybrid", 5), Key("what?", "hybrid", 3))
}
