package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	mw "github.com/casafacil/portalsync/internal/api/middleware"
	"github.com/casafacil/portalsync/internal/api/response"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
)

// ListingLister lists portal listing states for a tenant.
type ListingLister interface {
	ListListings(ctx context.Context, filter store.ListingFilter) ([]*models.Listing, error)
}

// NewListListingsHandler returns an http.HandlerFunc for GET /api/v1/listings:
// the per-portal publication state of the tenant's properties.
func NewListListingsHandler(svc ListingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		filter := store.ListingFilter{
			TenantID: tenantID,
			Provider: r.URL.Query().Get("provider"),
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

		listings, err := svc.ListListings(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list listings", nil)
			return
		}

		response.JSON(w, listings)
	}
}
