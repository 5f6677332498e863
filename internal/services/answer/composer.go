// -----------------------------------------------------------------------
// Answer Composer - grounded prompt assembly over retrieved sources
// with a TTL-LRU cache in front of retrieval
// -----------------------------------------------------------------------

package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
)

const (
	maxPromptSources = 5
	maxSourceChars   = 500
)

// Composer turns a question and its retrieved sources into an answer
type Composer struct {
	llm    interfaces.LLMService
	cache  *Cache
	logger arbor.ILogger
}

// NewComposer creates the answer service
func NewComposer(llm interfaces.LLMService, cacheSize int, cacheTTL time.Duration, logger arbor.ILogger) *Composer {
	return &Composer{
		llm:    llm,
		cache:  NewCache(cacheSize, cacheTTL),
		logger: logger,
	}
}

// Answer runs retrieval and composition for the question, consulting
// the cache first. Provider failures produce an error-marker answer
// that is never cached.
func (c *Composer) Answer(ctx context.Context, retriever interfaces.Retriever, question string, topK int) (*models.QueryResponse, error) {
	key := Key(question, retriever.Name(), topK)
	if cached := c.cache.Get(key); cached != nil {
		c.logger.Debug().Str("key", key[:8]).Msg("Query cache hit")
		return cached, nil
	}

	start := time.Now()

	results, err := retriever.Search(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	answer, generated := c.compose(ctx, question, results)

	sources := make([]models.RetrievalResult, len(results))
	for i, result := range results {
		sources[i] = *result
	}

	response := &models.QueryResponse{
		Answer:        answer,
		Sources:       sources,
		RetrieverUsed: retriever.Name(),
		Metadata: map[string]interface{}{
			"top_k":       topK,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	}

	// A failed generation must not be served to later callers
	if generated {
		c.cache.Set(key, response)
	}

	return response, nil
}

// compose builds the grounded prompt and invokes the LLM. The second
// return reports whether generation succeeded.
func (c *Composer) compose(ctx context.Context, question string, sources []*models.RetrievalResult) (string, bool) {
	if len(sources) == 0 {
		return "I couldn't find relevant information to answer your question.", true
	}

	prompt := BuildPrompt(question, sources)

	answer, err := c.llm.Generate(ctx, prompt)
	if err != nil {
		c.logger.Error().Err(err).Str("model", c.llm.Model()).Msg("Answer generation failed")
		return fmt.Sprintf("Error generating answer with %s: %v", c.llm.Model(), err), false
	}

	return answer, true
}

// BuildPrompt assembles the grounded prompt from the best sources,
// truncating each to a bounded excerpt
func BuildPrompt(question string, sources []*models.RetrievalResult) string {
	limit := len(sources)
	if limit > maxPromptSources {
		limit = maxPromptSources
	}

	var context strings.Builder
	for i := 0; i < limit; i++ {
		text := sources[i].Text
		if len(text) > maxSourceChars {
			text = text[:maxSourceChars]
		}
		if i > 0 {
			context.WriteString("\n\n")
		}
		fmt.Fprintf(&context, "Source %d (score: %.3f): %s", i+1, sources[i].Score, text)
	}

	return fmt.Sprintf(`Based on the following sources, answer the question accurately and concisely.

SOURCES:
%s

QUESTION: %s

ANSWER: Provide a clear, accurate answer based only on the information in the sources above. If the sources don't contain enough information to answer the question, say so.`, context.String(), question)
}

// CacheStats exposes the cache counters for the metrics surface
func (c *Composer) CacheStats() map[string]interface{} {
	return c.cache.Stats()
}
