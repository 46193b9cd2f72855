package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	mw "github.com/casafacil/portalsync/internal/api/middleware"
	"github.com/casafacil/portalsync/internal/api/response"
	"github.com/casafacil/portalsync/internal/engine"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
)

// Enqueuer defines the interface the sync handler depends on.
type Enqueuer interface {
	Enqueue(ctx context.Context, tenantID, propertyID uuid.UUID, providers []string, action string) (*engine.EnqueueResult, error)
}

// NewSyncHandler returns an http.HandlerFunc for POST /api/v1/sync. It
// records synchronization intents; the actual portal calls happen when the
// dispatcher picks the jobs up.
func NewSyncHandler(svc Enqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			PropertyID string   `json:"property_id"`
			Providers  []string `json:"providers"`
			Action     string   `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		propertyID, err := uuid.Parse(req.PropertyID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"property_id must be a valid UUID", nil)
			return
		}

		if len(req.Providers) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"providers must not be empty", nil)
			return
		}

		if !models.ValidAction(req.Action) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"action must be one of publish, unpublish, refresh", nil)
			return
		}

		result, err := svc.Enqueue(r.Context(), tenantID, propertyID, req.Providers, req.Action)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "PROPERTY_NOT_FOUND",
					"Property does not exist", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to enqueue synchronization jobs", nil)
			}
			return
		}

		response.Accepted(w, result)
	}
}
