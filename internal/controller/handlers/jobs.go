package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"shortforge/internal/logger"
	"shortforge/internal/store"
	"shortforge/internal/worker"
	"shortforge/pkg/api"
)

// CreateJob handles POST /api/jobs.
// The job is stored as pending and processed in the background.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	job, err := h.service.CreateJob(ctx, req.Topic, req.Duration)
	if err != nil {
		if errors.Is(err, worker.ErrInvalidInput) {
			h.httpError(w, "Topic and duration are required", http.StatusBadRequest)
			return
		}
		logger.FromContext(ctx, h.logger).Error("Failed to create job", "error", err)
		h.httpError(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, toJobResponse(job))
}

// ListJobs handles GET /api/jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.httpError(w, "Failed to fetch jobs", http.StatusInternalServerError)
		return
	}

	resp := make([]api.JobResponse, len(jobs))
	for i, job := range jobs {
		resp[i] = toJobResponse(job)
	}
	h.respondJson(w, http.StatusOK, resp)
}

// GetJob handles GET /api/jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	h.respondJson(w, http.StatusOK, toJobResponse(job))
}

// DeleteJob handles DELETE /api/jobs/{id}. Unknown ids succeed.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteJob(r.Context(), r.PathValue("id")); err != nil {
		logger.FromContext(r.Context(), h.logger).Error("Failed to delete job", "error", err)
		h.httpError(w, "Failed to delete job", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadJob handles GET /api/jobs/{id}/download.
func (h *Handlers) DownloadJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	if job.Status != store.JobStatusCompleted || job.VideoPath == "" {
		h.httpError(w, "Video not found or not ready", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(job.VideoPath); err != nil {
		h.httpError(w, "Video not found or not ready", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="short-`+job.ID+`.mp4"`)
	http.ServeFile(w, r, job.VideoPath)
}

// loadJob writes a 404 or 500 and returns false when the job cannot be read.
func (h *Handlers) loadJob(w http.ResponseWriter, r *http.Request) (*store.Job, bool) {
	job, err := h.service.GetJob(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logger.FromContext(r.Context(), h.logger).Error("Failed to fetch job", "error", err)
		h.httpError(w, "Failed to fetch job", http.StatusInternalServerError)
		return nil, false
	}
	return job, true
}
