package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/revenue-cohorts/internal/api/middleware"
	"github.com/dvloznov/revenue-cohorts/internal/jobs"
	"github.com/dvloznov/revenue-cohorts/internal/period"
	"github.com/dvloznov/revenue-cohorts/internal/report"
	"github.com/rs/zerolog"
)

// ExportsHandler handles report export endpoints.
type ExportsHandler struct {
	publisher jobs.Publisher
	enabled   bool
	log       zerolog.Logger
}

// NewExportsHandler creates a new exports handler. When enabled is false
// (no bucket configured) every export request is rejected.
func NewExportsHandler(publisher jobs.Publisher, enabled bool, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{
		publisher: publisher,
		enabled:   enabled,
		log:       log,
	}
}

// EnqueueExport handles POST /api/reports/export
func (h *ExportsHandler) EnqueueExport(w http.ResponseWriter, r *http.Request) {
	if !h.enabled {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Report exports are disabled: no bucket configured")
		return
	}

	var req report.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	req.TenantID = middleware.GetTenantID(ctx)

	if _, err := req.Spec(); err != nil {
		var verr *period.ValidationError
		if errors.As(err, &verr) {
			middleware.WriteError(w, http.StatusBadRequest, verr.Message)
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &jobs.ExportReportJob{
		TenantID: req.TenantID,
		Request:  req,
	}

	if err := h.publisher.PublishExportReport(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue export job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue export job")
		return
	}

	jobID, status := job.JobID, job.Status
	h.log.Info().Str("job_id", jobID).Str("tenant_id", req.TenantID).Msg("Export job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    jobID,
		"tenant_id": req.TenantID,
		"status":    string(status),
	})
}

// ResultFetcher reads back an exported document by URI.
type ResultFetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store   jobs.JobStore
	fetcher ResultFetcher
	log     zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// WithFetcher enables GetResult.
func (h *JobsHandler) WithFetcher(f ResultFetcher) *JobsHandler {
	h.fetcher = f
	return h
}

// ownedJob loads jobID and writes 404 unless it belongs to the request
// tenant. Jobs of other tenants are indistinguishable from missing ones.
func (h *JobsHandler) ownedJob(w http.ResponseWriter, r *http.Request, jobID string) (*jobs.ExportReportJob, bool) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return nil, false
	}
	if tenantID := middleware.GetTenantID(ctx); tenantID == "" || job.TenantID != tenantID {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	return job, true
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := h.ownedJob(w, r, jobID)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs, always scoped to the request tenant.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID := middleware.GetTenantID(ctx)
	if tenantID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "tenantId is required")
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		TenantID: tenantID,
		Status:   jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// GetResult handles GET /api/jobs/{id}/result. It serves the exported
// report of a completed job owned by the request tenant.
func (h *JobsHandler) GetResult(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	if h.fetcher == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Report exports are disabled: no bucket configured")
		return
	}

	job, ok := h.ownedJob(w, r, jobID)
	if !ok {
		return
	}

	if job.Status != jobs.JobStatusCompleted || job.ObjectURI == "" {
		middleware.WriteError(w, http.StatusConflict, "Job has no result yet (status "+string(job.Status)+")")
		return
	}

	data, err := h.fetcher.Fetch(ctx, job.ObjectURI)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Str("object_uri", job.ObjectURI).Msg("Failed to read export")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read export")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
