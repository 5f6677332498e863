package retrieval

import (
	"context"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// BM25Retriever adapts the lexical index to the retriever surface
type BM25Retriever struct {
	index interfaces.LexicalIndex
}

var _ interfaces.Retriever = (*BM25Retriever)(nil)

// NewBM25Retriever wraps the lexical index
func NewBM25Retriever(index interfaces.LexicalIndex) *BM25Retriever {
	return &BM25Retriever{index: index}
}

func (r *BM25Retriever) Name() string {
	return "bm25"
}

func (r *BM25Retriever) Search(ctx context.Context, query string, topK int) ([]*models.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.index.Search(query, topK), nil
}
