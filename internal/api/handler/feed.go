package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/casafacil/portalsync/internal/account"
	"github.com/casafacil/portalsync/internal/api/response"
	"github.com/casafacil/portalsync/pkg/models"
)

// FeedTokenVerifier checks a plaintext feed token against the stored hash.
type FeedTokenVerifier interface {
	VerifyFeedToken(ctx context.Context, provider, token string) (*models.Account, error)
}

// FeedRenderer produces the XML feed document for one tenant and provider.
type FeedRenderer interface {
	Render(ctx context.Context, tenantID uuid.UUID, provider string) ([]byte, error)
}

// NewFeedHandler returns an http.HandlerFunc for GET /feeds/{provider}/{file}.
// This endpoint is pulled by portal crawlers, so it authenticates with the
// token embedded in the URL rather than an Authorization header.
func NewFeedHandler(verifier FeedTokenVerifier, renderer FeedRenderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")

		file := chi.URLParam(r, "file")
		token := strings.TrimSuffix(file, ".xml")
		if token == file || token == "" {
			http.NotFound(w, r)
			return
		}

		acct, err := verifier.VerifyFeedToken(r.Context(), provider, token)
		if err != nil {
			if errors.Is(err, account.ErrInvalidFeedToken) {
				// Same body for a bad token and an unknown provider: no
				// oracle for token guessing.
				http.NotFound(w, r)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to verify feed token", nil)
			return
		}

		doc, err := renderer.Render(r.Context(), acct.TenantID, provider)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to render feed", nil)
			return
		}

		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}
}
