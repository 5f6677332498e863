// -----------------------------------------------------------------------
// Ingest Handler - job submission, status snapshots, and the active
// job listing
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/respondeo/internal/interfaces"
	"github.com/ternarybob/respondeo/internal/models"
	"github.com/ternarybob/respondeo/internal/services/ingest"
)

// IngestHandler handles ingest-related HTTP requests
type IngestHandler struct {
	pipeline     *ingest.Pipeline
	orchestrator interfaces.JobOrchestrator
	validate     *validator.Validate
	logger       arbor.ILogger
}

// NewIngestHandler creates the ingest handler
func NewIngestHandler(pipeline *ingest.Pipeline, orchestrator interfaces.JobOrchestrator, logger arbor.ILogger) *IngestHandler {
	return &IngestHandler{
		pipeline:     pipeline,
		orchestrator: orchestrator,
		validate:     validator.New(),
		logger:       logger,
	}
}

// IngestHandler handles POST /ingest requests
func (h *IngestHandler) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	job, err := h.pipeline.Start(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAdmissionDenied):
			WriteError(w, http.StatusTooManyRequests, "Too many active jobs", err.Error())
		case errors.Is(err, models.ErrValidation):
			WriteError(w, http.StatusBadRequest, "Invalid content", err.Error())
		default:
			h.logger.Error().Err(err).Msg("Failed to start ingest job")
			WriteError(w, http.StatusInternalServerError, "Failed to start ingestion", err.Error())
		}
		return
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("document_type", string(req.DocumentType)).
		Msg("Ingest job accepted")

	WriteJSON(w, http.StatusOK, models.IngestResponse{
		Status:        "success",
		Message:       "Ingestion job started",
		JobID:         job.ID,
		ChunksCreated: 0,
	})
}

// StatusHandler handles GET /ingest/{id}/status requests
func (h *IngestHandler) StatusHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	job, err := h.orchestrator.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Job not found", jobID)
			return
		}
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job")
		WriteError(w, http.StatusInternalServerError, "Failed to load job", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, models.StatusFromJob(job))
}

// ActiveJobsHandler handles GET /ingest/jobs/active requests
func (h *IngestHandler) ActiveJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobs, err := h.orchestrator.ListActive(r.Context(), 0)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list active jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list active jobs", err.Error())
		return
	}

	statuses := make([]*models.JobStatusResponse, len(jobs))
	for i, job := range jobs {
		statuses[i] = models.StatusFromJob(job)
	}

	WriteJSON(w, http.StatusOK, models.ActiveJobsResponse{
		Jobs:  statuses,
		Total: len(statuses),
	})
}
