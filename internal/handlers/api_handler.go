// -----------------------------------------------------------------------
// API Handler - health, readiness, liveness, and the metrics snapshot
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/common"
	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/services/answer"
)

// APIHandler serves the operational endpoints
type APIHandler struct {
	orchestrator interfaces.JobOrchestrator
	vectors      interfaces.VectorStorage
	metrics      interfaces.MetricsRegistry
	composer     *answer.Composer
	collection   string
	logger       arbor.ILogger
}

// NewAPIHandler creates the operational endpoint handler
func NewAPIHandler(
	orchestrator interfaces.JobOrchestrator,
	vectors interfaces.VectorStorage,
	metricsRegistry interfaces.MetricsRegistry,
	composer *answer.Composer,
	collection string,
	logger arbor.ILogger,
) *APIHandler {
	return &APIHandler{
		orchestrator: orchestrator,
		vectors:      vectors,
		metrics:      metricsRegistry,
		composer:     composer,
		collection:   collection,
		logger:       logger,
	}
}

// HealthHandler returns the liveness marker
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}

// LiveHandler reports process liveness
func (h *APIHandler) LiveHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

// ReadyHandler aggregates the job store ping, the vector index, and
// process memory into a readiness verdict
func (h *APIHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	health := h.orchestrator.Health(r.Context())

	checks := map[string]interface{}{
		"job_store": map[string]interface{}{
			"status":  health.Status,
			"ping_ms": health.PingMS,
		},
		"active_jobs": health.ActiveJobs,
	}

	ready := health.Status == "healthy"

	if count, err := h.vectors.Count(h.collection); err != nil {
		ready = false
		checks["vector_store"] = map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	} else {
		checks["vector_store"] = map[string]interface{}{
			"status": "healthy",
			"count":  count,
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		checks["memory"] = map[string]interface{}{
			"used_percent": vm.UsedPercent,
			"used_bytes":   vm.Used,
		}
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
		h.logger.Warn().Str("job_store", health.Status).Msg("Readiness check failed")
	}

	WriteJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// MetricsHandler renders the registry snapshot plus the query cache
// counters as JSON
func (h *APIHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	snapshot := h.metrics.Snapshot()
	snapshot["query_cache"] = h.composer.CacheStats()

	WriteJSON(w, http.StatusOK, snapshot)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
