package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/casafacil/portalsync/internal/api/middleware"
	"github.com/casafacil/portalsync/internal/api/response"
	"github.com/casafacil/portalsync/internal/engine"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
)

// JobRunner defines the dispatcher operations the handlers depend on.
type JobRunner interface {
	RunJob(ctx context.Context, jobID, tenantID uuid.UUID) (*models.Job, error)
	RunPending(ctx context.Context, limit int) (int, error)
}

// JobLister lists jobs for a tenant with filtering and pagination.
type JobLister interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(svc JobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		filter := store.JobFilter{
			TenantID: tenantID,
			Provider: r.URL.Query().Get("provider"),
			Status:   r.URL.Query().Get("status"),
			Page:     1,
			Limit:    50,
		}

		if raw := r.URL.Query().Get("property_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"property_id must be a valid UUID", nil)
				return
			}
			filter.PropertyID = &id
		}

		if raw := r.URL.Query().Get("page"); raw != "" {
			page, err := strconv.Atoi(raw)
			if err != nil || page < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"page must be a positive integer", nil)
				return
			}
			filter.Page = page
		}

		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 || limit > 100 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be between 1 and 100", nil)
				return
			}
			filter.Limit = limit
		}

		jobs, total, err := svc.ListJobs(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list jobs", nil)
			return
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}

// NewRunJobHandler returns an http.HandlerFunc for POST /api/v1/jobs/{id}/run:
// a synchronous run of a single job, mainly an operator escape hatch.
func NewRunJobHandler(svc JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"id must be a valid UUID", nil)
			return
		}

		job, err := svc.RunJob(r.Context(), jobID, tenantID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
					"Job does not exist", nil)
			case errors.Is(err, engine.ErrJobNotRunnable):
				response.Error(w, http.StatusConflict, "JOB_NOT_RUNNABLE",
					"Job is not in a runnable state", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to run job", nil)
			}
			return
		}

		response.JSON(w, job)
	}
}

// NewRunPendingHandler returns an http.HandlerFunc for POST
// /api/v1/jobs/run-pending: one dispatcher sweep over due jobs.
func NewRunPendingHandler(svc JobRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			limit = n
		}

		attempted, err := svc.RunPending(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Dispatcher sweep failed", nil)
			return
		}

		response.JSON(w, map[string]int{"attempted": attempted})
	}
}
