package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dvloznov/mintbalance/internal/api/middleware"
	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/jobs"
	"github.com/dvloznov/mintbalance/internal/logger"
	"github.com/go-chi/chi/v5"
)

// JobsHandler handles background job endpoints.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
	}
}

// EnqueueJob handles POST /api/jobs with {"type": ..., "params": {...}}.
func (h *JobsHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type   jobs.JobType    `json:"type"`
		Params json.RawMessage `json:"params,omitempty"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		middleware.WriteErr(w, r, err, "Invalid request body")
		return
	}
	if !req.Type.Valid() {
		middleware.WriteErr(w, r, fmt.Errorf("unknown job type %q: %w", req.Type, domain.ErrInvalid), "Invalid job type")
		return
	}

	job := &jobs.Job{Type: req.Type, Params: req.Params}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		middleware.WriteErr(w, r, err, "Failed to enqueue job")
		return
	}

	logger.FromContext(r.Context()).Info().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Msg("Job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"type":   string(job.Type),
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Type:   jobs.JobType(query.Get("type")),
		Status: jobs.JobStatus(query.Get("status")),
	}

	var err error
	if filter.Limit, err = intQuery(r, "limit"); err != nil {
		middleware.WriteErr(w, r, err, "Invalid limit")
		return
	}
	if filter.Offset, err = intQuery(r, "offset"); err != nil {
		middleware.WriteErr(w, r, err, "Invalid offset")
		return
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		middleware.WriteErr(w, r, err, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.Job{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
