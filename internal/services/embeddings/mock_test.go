package embeddings

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/respondeo/internal/common"
)

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestMockService_Deterministic(t *testing.T) {
	svc := NewMockService(64)

	a, err := svc.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	b, err := svc.EmbedBatch(context.Background(), []string{"hello world"})
	require.NoError(t, err)

	assert.Equal(t, a[0], b[0])
}

func TestMockService_DistinctTexts(t *testing.T) {
	svc := NewMockService(64)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestMockService_UnitVectors(t *testing.T) {
	svc := NewMockService(128)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"some text to embed"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Len(t, vectors[0], 128)
	assert.InDelta(t, 1.0, vectorNorm(vectors[0]), 1e-5)
}

func TestMockService_CancelledContext(t *testing.T) {
	svc := NewMockService(16)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EmbedBatch(ctx, []string{"text"})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	normalized := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(normalized[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(normalized[1]), 1e-6)

	// Zero vectors pass through unchanged
	zero := []float32{0, 0, 0}
	assert.Equal(t, zero, Normalize(zero))
}

func TestNewService_ProviderSelection(t *testing.T) {
	logger := common.GetLogger()

	svc, err := NewService(context.Background(), &common.EmbeddingConfig{Provider: "mock", Dimension: 32}, logger)
	require.NoError(t, err)
	assert.Equal(t, "mock", svc.Provider())
	assert.Equal(t, 32, svc.Dimension())

	_, err = NewService(context.Background(), &common.EmbeddingConfig{Provider: "bogus"}, logger)
	assert.Error(t, err)

	// Gemini without a key fails fast
	_, err = NewService(context.Background(), &common.EmbeddingConfig{Provider: "gemini"}, logger)
	assert.Error(t, err)
}
