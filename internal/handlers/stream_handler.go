// -----------------------------------------------------------------------
// Stream Handler - bearer-gated SSE progress stream for ingest jobs
// -----------------------------------------------------------------------

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/sse"
)

// StreamHandler serves the job progress stream
type StreamHandler struct {
	streams *sse.Manager
	token   string
	logger  arbor.ILogger
}

// NewStreamHandler creates the stream handler. An empty token disables
// the bearer gate.
func NewStreamHandler(streams *sse.Manager, bearerToken string, logger arbor.ILogger) *StreamHandler {
	return &StreamHandler{
		streams: streams,
		token:   bearerToken,
		logger:  logger,
	}
}

// authorized checks the Authorization header against the configured
// bearer token
func (h *StreamHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && presented == h.token
}

// StreamJobHandler handles GET /ingest/{id}/stream requests
func (h *StreamHandler) StreamJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	if !h.authorized(r) {
		h.logger.Warn().Str("job_id", jobID).Msg("Stream request rejected, bad bearer token")
		WriteError(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required")
		return
	}

	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = r.URL.Query().Get("last_event_id")
	}
	clientID := r.Header.Get("X-Client-ID")

	err := h.streams.StreamJob(r.Context(), w, jobID, clientID, lastEventID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Nothing has been flushed yet, reclaim the response
			w.Header().Del("Cache-Control")
			w.Header().Del("X-Accel-Buffering")
			WriteError(w, http.StatusNotFound, "Job not found", jobID)
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Job stream failed")
	}
}
