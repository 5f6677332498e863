// -----------------------------------------------------------------------
// Query Handler - question answering over the ingested corpus, the
// retriever listing, and the streamed answer variant
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/answer"
	"github.com/ternarybob/respondeo/internal/services/retrieval"
	"github.com/ternarybob/respondeo/internal/services/sse"
)

const (
	minTopK = 1
	maxTopK = 20

	// Streamed answers are flushed in pieces of this many characters
	streamChunkChars = 160
)

// QueryHandler handles query-related HTTP requests
type QueryHandler struct {
	registry *retrieval.Registry
	composer *answer.Composer
	defaults common.QueryConfig
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewQueryHandler creates the query handler
func NewQueryHandler(registry *retrieval.Registry, composer *answer.Composer, defaults common.QueryConfig, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		registry: registry,
		composer: composer,
		defaults: defaults,
		validate: validator.New(),
		logger:   logger,
	}
}

// retrieverParams resolves the retriever name and top_k from query
// parameters, falling back to configured defaults and clamping top_k
// into its valid range
func (h *QueryHandler) retrieverParams(r *http.Request) (string, int) {
	name := r.URL.Query().Get("retriever")
	if name == "" {
		name = h.defaults.DefaultRetriever
	}

	topK := h.defaults.DefaultTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			topK = parsed
		}
	}
	if topK < minTopK {
		topK = minTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	return name, topK
}

// QueryHandler handles POST /query requests
func (h *QueryHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	name, topK := h.retrieverParams(r)

	retriever, err := h.registry.Get(name)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Unknown retriever", err.Error())
		return
	}

	response, err := h.composer.Answer(r.Context(), retriever, req.Question, topK)
	if err != nil {
		h.logger.Error().Err(err).Str("retriever", name).Msg("Query failed")
		WriteError(w, http.StatusInternalServerError, "Query failed", err.Error())
		return
	}

	h.logger.Info().
		Str("retriever", response.RetrieverUsed).
		Int("sources", len(response.Sources)).
		Msg("Query answered")

	WriteJSON(w, http.StatusOK, response)
}

// RetrieversHandler handles GET /query/retrievers requests
func (h *QueryHandler) RetrieversHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"retrievers": h.registry.Names(),
		"default":    h.defaults.DefaultRetriever,
	})
}

// StreamHandler handles GET /query/stream requests, emitting the
// answer as SSE chunks: sources first, then the answer text in pieces,
// then a done marker
func (h *QueryHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	question := r.URL.Query().Get("question")
	if question == "" {
		WriteError(w, http.StatusBadRequest, "Validation failed", "question query parameter is required")
		return
	}

	name, topK := h.retrieverParams(r)

	retriever, err := h.registry.Get(name)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Unknown retriever", err.Error())
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Streaming unsupported", err.Error())
		return
	}

	response, err := h.composer.Answer(r.Context(), retriever, question, topK)
	if err != nil {
		writer.WriteEvent("", string(models.EventStreamError), map[string]interface{}{
			"type":    string(models.EventStreamError),
			"message": err.Error(),
		})
		return
	}

	if err := writer.WriteEvent("", "sources", map[string]interface{}{
		"type":           "sources",
		"sources":        response.Sources,
		"retriever_used": response.RetrieverUsed,
	}); err != nil {
		return
	}

	text := response.Answer
	for offset := 0; offset < len(text); offset += streamChunkChars {
		end := offset + streamChunkChars
		if end > len(text) {
			end = len(text)
		}
		if err := writer.WriteEvent("", "answer_chunk", map[string]interface{}{
			"type": "answer_chunk",
			"text": text[offset:end],
		}); err != nil {
			return
		}
	}

	writer.WriteEvent("", "done", map[string]interface{}{
		"type":     "done",
		"metadata": response.Metadata,
	})
}
