// Package api assembles the HTTP router for the portalsync service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/casafacil/portalsync/internal/api/middleware"
	"github.com/casafacil/portalsync/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc
	FeedHandler   http.HandlerFunc

	ListPortals   http.HandlerFunc
	ListAccounts  http.HandlerFunc
	UpsertAccount http.HandlerFunc
	RotateToken   http.HandlerFunc

	SyncHandler  http.HandlerFunc
	ListJobs     http.HandlerFunc
	RunJob       http.HandlerFunc
	RunPending   http.HandlerFunc
	ListListings http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Portal crawlers authenticate with the token baked into the URL, so the
	// feed endpoint sits outside the Bearer-token group.
	r.Get("/feeds/{provider}/{file}", orNotImplemented(deps.FeedHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		// Read surface
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("read"))

			r.Get("/api/v1/portals", orNotImplemented(deps.ListPortals))
			r.Get("/api/v1/accounts", orNotImplemented(deps.ListAccounts))
			r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobs))
			r.Get("/api/v1/listings", orNotImplemented(deps.ListListings))
		})

		// Enqueue surface
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("sync"))

			r.Post("/api/v1/sync", orNotImplemented(deps.SyncHandler))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Put("/api/v1/accounts/{provider}", orNotImplemented(deps.UpsertAccount))
			r.Post("/api/v1/accounts/{provider}/rotate-token", orNotImplemented(deps.RotateToken))

			r.Post("/api/v1/jobs/run-pending", orNotImplemented(deps.RunPending))
			r.Post("/api/v1/jobs/{id}/run", orNotImplemented(deps.RunJob))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
