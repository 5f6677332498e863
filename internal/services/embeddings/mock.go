package embeddings

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/ternarybob/respondeo/internal/interfaces"
)

// MockService produces deterministic unit vectors without any network
// dependency. The same text always embeds to the same vector, so
// similarity comparisons behave consistently across runs.
type MockService struct {
	dimension int
}

var _ interfaces.EmbeddingService = (*MockService)(nil)

// NewMockService creates a deterministic embedding provider
func NewMockService(dimension int) *MockService {
	if dimension <= 0 {
		dimension = 1536
	}
	return &MockService{dimension: dimension}
}

// EmbedBatch derives each vector from a hash of the text
func (s *MockService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = s.embed(text)
	}
	return vectors, nil
}

func (s *MockService) embed(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vector := make([]float32, s.dimension)
	for i := range vector {
		vector[i] = float32(rng.NormFloat64())
	}
	return Normalize(vector)
}

func (s *MockService) Dimension() int {
	return s.dimension
}

func (s *MockService) Provider() string {
	return "mock"
}
