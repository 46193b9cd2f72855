// Package handler contains the HTTP handlers for the portalsync API.
package handler

import (
	"net/http"

	"github.com/casafacil/portalsync/internal/api/response"
	"github.com/casafacil/portalsync/internal/portal"
)

// NewListPortalsHandler returns a handler for GET /api/v1/portals: the static
// capability descriptors of every supported portal.
func NewListPortalsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, portal.All())
	}
}
