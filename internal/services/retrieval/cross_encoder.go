package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/httpclient"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

// HTTPCrossEncoder scores (query, document) pairs against a remote
// cross-encoder endpoint
type HTTPCrossEncoder struct {
	endpoint string
	model    string
	client   *http.Client
	logger   arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.CrossEncoder = (*HTTPCrossEncoder)(nil)

type scoreRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// NewHTTPCrossEncoder creates a remote scorer client
func NewHTTPCrossEncoder(endpoint, model string, logger arbor.ILogger) *HTTPCrossEncoder {
	return &HTTPCrossEncoder{
		endpoint: endpoint,
		model:    model,
		client:   httpclient.NewDefaultHTTPClient(30 * time.Second),
		logger:   logger,
	}
}

// Score posts the query and documents and returns one score per document
func (e *HTTPCrossEncoder) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(scoreRequest{Query: query, Documents: docs, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("failed to encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cross-encoder returned %d", models.ErrProvider, resp.StatusCode)
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: invalid score response: %v", models.ErrProvider, err)
	}
	if len(decoded.Scores) != len(docs) {
		return nil, fmt.Errorf("%w: got %d scores for %d documents", models.ErrProvider, len(decoded.Scores), len(docs))
	}

	return decoded.Scores, nil
}

// OverlapScorer is a local fallback that scores by token overlap with
// the query. Used in tests and when no remote endpoint is configured.
type OverlapScorer struct{}

var _ interfaces.CrossEncoder = (*OverlapScorer)(nil)

func (OverlapScorer) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := map[string]bool{}
	for _, token := range strings.Fields(strings.ToLower(query)) {
		queryTokens[token] = true
	}

	scores := make([]float64, len(docs))
	for i, doc := range docs {
		docTokens := strings.Fields(strings.ToLower(doc))
		if len(docTokens) == 0 {
			continue
		}
		matched := 0
		for _, token := range docTokens {
			if queryTokens[token] {
				matched++
			}
		}
		scores[i] = float64(matched) / float64(len(docTokens))
	}
	return scores, nil
}
