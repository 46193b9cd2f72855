package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/casafacil/portalsync/internal/account"
	mw "github.com/casafacil/portalsync/internal/api/middleware"
	"github.com/casafacil/portalsync/internal/api/response"
	"github.com/casafacil/portalsync/pkg/models"
)

// AccountRegistry defines the account operations the handlers depend on.
type AccountRegistry interface {
	List(ctx context.Context, tenantID uuid.UUID) ([]*models.Account, error)
	Upsert(ctx context.Context, tenantID uuid.UUID, provider, mode string, isActive bool, credentials models.Credentials) (*models.Account, error)
}

// TokenRotator issues a fresh feed token for a portal account.
type TokenRotator interface {
	Rotate(ctx context.Context, tenantID uuid.UUID, provider string) (string, error)
}

// accountView is the API shape of a portal account. Credentials are never
// echoed back; only their keys are listed so clients can tell what is set.
type accountView struct {
	Provider       string   `json:"provider"`
	Mode           string   `json:"mode"`
	IsActive       bool     `json:"is_active"`
	HasFeedToken   bool     `json:"has_feed_token"`
	CredentialKeys []string `json:"credential_keys"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toAccountView(a *models.Account) accountView {
	keys := make([]string, 0, len(a.Credentials))
	for k := range a.Credentials {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return accountView{
		Provider:       a.Provider,
		Mode:           a.Mode,
		IsActive:       a.IsActive,
		HasFeedToken:   a.HasFeedToken(),
		CredentialKeys: keys,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// NewListAccountsHandler returns an http.HandlerFunc for GET /api/v1/accounts.
func NewListAccountsHandler(registry AccountRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		accounts, err := registry.List(r.Context(), tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list portal accounts", nil)
			return
		}

		views := make([]accountView, 0, len(accounts))
		for _, a := range accounts {
			views = append(views, toAccountView(a))
		}
		response.JSON(w, views)
	}
}

// NewUpsertAccountHandler returns an http.HandlerFunc for PUT
// /api/v1/accounts/{provider}. Omitting credentials in the body keeps the
// stored ones untouched.
func NewUpsertAccountHandler(registry AccountRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		provider := chi.URLParam(r, "provider")

		var req struct {
			Mode        string             `json:"mode"`
			IsActive    bool               `json:"is_active"`
			Credentials models.Credentials `json:"credentials"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		acct, err := registry.Upsert(r.Context(), tenantID, provider, req.Mode, req.IsActive, req.Credentials)
		if err != nil {
			switch {
			case errors.Is(err, account.ErrUnknownProvider):
				response.Error(w, http.StatusNotFound, "UNKNOWN_PROVIDER",
					"Unknown portal provider: "+provider, nil)
			case errors.Is(err, account.ErrUnsupportedMode):
				response.Error(w, http.StatusBadRequest, "UNSUPPORTED_MODE",
					"Provider "+provider+" does not support mode "+req.Mode, nil)
			case errors.Is(err, account.ErrMissingCredentials):
				response.Error(w, http.StatusBadRequest, "MISSING_CREDENTIALS",
					"Active api-mode accounts require credentials", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to save portal account", nil)
			}
			return
		}

		response.JSON(w, toAccountView(acct))
	}
}

// NewRotateTokenHandler returns an http.HandlerFunc for POST
// /api/v1/accounts/{provider}/rotate-token. The returned feed URL embeds the
// plaintext token and is shown exactly once.
func NewRotateTokenHandler(rotator TokenRotator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		provider := chi.URLParam(r, "provider")

		feedURL, err := rotator.Rotate(r.Context(), tenantID, provider)
		if err != nil {
			switch {
			case errors.Is(err, account.ErrUnknownProvider):
				response.Error(w, http.StatusNotFound, "UNKNOWN_PROVIDER",
					"Unknown portal provider: "+provider, nil)
			case errors.Is(err, account.ErrUnsupportedMode):
				response.Error(w, http.StatusBadRequest, "UNSUPPORTED_MODE",
					"Provider "+provider+" does not serve feeds", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to rotate feed token", nil)
			}
			return
		}

		response.Created(w, map[string]string{"feed_url": feedURL})
	}
}
