// Package account implements the per-tenant portal account registry and the
// feed token rotation service.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casafacil/portalsync/internal/portal"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
	"github.com/google/uuid"
)

var (
	ErrUnknownProvider    = errors.New("unknown provider")
	ErrUnsupportedMode    = errors.New("unsupported mode for provider")
	ErrMissingCredentials = errors.New("api mode requires credentials before activation")
)

// Registry owns portal account configuration. Accounts are keyed by
// (tenant, provider) and upserts are idempotent: repeated calls overwrite,
// they never create duplicates.
type Registry struct {
	store store.Store
}

func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s}
}

func (r *Registry) Get(ctx context.Context, tenantID uuid.UUID, provider string) (*models.Account, error) {
	return r.store.GetAccount(ctx, tenantID, provider)
}

func (r *Registry) List(ctx context.Context, tenantID uuid.UUID) ([]*models.Account, error) {
	return r.store.ListAccounts(ctx, tenantID)
}

// Upsert writes the configuration for (tenant, provider). Passing nil
// credentials keeps whatever secret material the account already holds:
// switching from api to feed mode must not erase credentials, and the feed
// token is only ever touched by rotation.
func (r *Registry) Upsert(ctx context.Context, tenantID uuid.UUID, provider, mode string, isActive bool, credentials models.Credentials) (*models.Account, error) {
	desc, ok := portal.Lookup(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if !desc.SupportsMode(mode) {
		return nil, fmt.Errorf("%w: %q does not support %q", ErrUnsupportedMode, provider, mode)
	}

	existing, err := r.store.GetAccount(ctx, tenantID, provider)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if credentials == nil && existing != nil {
		credentials = existing.Credentials
	}

	if mode == models.ModeAPI && isActive && len(credentials) == 0 {
		return nil, ErrMissingCredentials
	}

	acct := &models.Account{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Provider:    provider,
		Mode:        mode,
		IsActive:    isActive,
		Credentials: credentials,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	return r.store.UpsertAccount(ctx, acct)
}
