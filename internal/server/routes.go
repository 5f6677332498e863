// -----------------------------------------------------------------------
// Route table - operational endpoints, ingest lifecycle, and query
// -----------------------------------------------------------------------

package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Operational endpoints
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/ready", s.app.APIHandler.ReadyHandler)
	mux.HandleFunc("/live", s.app.APIHandler.LiveHandler)
	mux.HandleFunc("/metrics", s.app.APIHandler.MetricsHandler)

	// Ingestion
	mux.HandleFunc("/ingest", s.app.IngestHandler.IngestHandler)                 // POST - start job
	mux.HandleFunc("/ingest/jobs/active", s.app.IngestHandler.ActiveJobsHandler) // GET - list active
	mux.HandleFunc("/ingest/", s.handleIngestRoutes)                             // GET /{id}/status, /{id}/stream

	// Query
	mux.HandleFunc("/query", s.app.QueryHandler.QueryHandler)                 // POST - ask
	mux.HandleFunc("/query/stream", s.app.QueryHandler.StreamHandler)         // GET - streamed answer
	mux.HandleFunc("/query/retrievers", s.app.QueryHandler.RetrieversHandler) // GET - available retrievers

	// 404 handler for everything else
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleIngestRoutes routes /ingest/{id}/status and /ingest/{id}/stream
func (s *Server) handleIngestRoutes(w http.ResponseWriter, r *http.Request) {
	suffix := strings.TrimPrefix(r.URL.Path, "/ingest/")
	parts := strings.Split(suffix, "/")

	if len(parts) == 2 && parts[0] != "" {
		switch parts[1] {
		case "status":
			s.app.IngestHandler.StatusHandler(w, r, parts[0])
			return
		case "stream":
			s.app.StreamHandler.StreamJobHandler(w, r, parts[0])
			return
		}
	}

	s.app.APIHandler.NotFoundHandler(w, r)
}

// isStreamRoute reports whether the path serves an SSE stream, which
// is exempt from the request timeout and body size limits
func isStreamRoute(path string) bool {
	return strings.HasSuffix(path, "/stream")
}
