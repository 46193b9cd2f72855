package store

import (
	"context"
	"errors"
	"time"

	"github.com/casafacil/portalsync/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrClaimLost is returned when a conditional claim matched no pending row:
// another runner claimed the job first, or it is not eligible yet. Not an
// error worth surfacing to users — the losing claimer simply skips the job.
var ErrClaimLost = errors.New("job claim lost")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	GetProperty(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Property, error)
	CreateProperty(ctx context.Context, p *models.Property) error

	GetAccount(ctx context.Context, tenantID uuid.UUID, provider string) (*models.Account, error)
	GetAccountByFeedTokenPrefix(ctx context.Context, provider, prefix string) (*models.Account, error)
	ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]*models.Account, error)
	UpsertAccount(ctx context.Context, acct *models.Account) (*models.Account, error)
	SetFeedToken(ctx context.Context, tenantID uuid.UUID, provider, prefix, hash string) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error)
	GetActiveJob(ctx context.Context, tenantID, propertyID uuid.UUID, provider string) (*models.Job, error)
	SupersedeJob(ctx context.Context, id uuid.UUID) error
	ClaimJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListDueJobIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	FinishJob(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	RescheduleJob(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)

	GetListing(ctx context.Context, tenantID, propertyID uuid.UUID, provider string) (*models.Listing, error)
	UpsertListing(ctx context.Context, l *models.Listing) (*models.Listing, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]*models.Listing, error)

	AddFeedEntry(ctx context.Context, tenantID uuid.UUID, provider string, propertyID uuid.UUID) error
	RemoveFeedEntry(ctx context.Context, tenantID uuid.UUID, provider string, propertyID uuid.UUID) error
	ListFeedProperties(ctx context.Context, tenantID uuid.UUID, provider string) ([]*models.Property, error)
}

type JobFilter struct {
	TenantID   uuid.UUID
	PropertyID *uuid.UUID
	Provider   string
	Status     string
	Page       int
	Limit      int
}

type ListingFilter struct {
	TenantID   uuid.UUID
	PropertyID *uuid.UUID
	Provider   string
}

type jobUpdateParams struct {
	LastError *string
}

type JobUpdateOption func(*jobUpdateParams)

func WithLastError(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.LastError = &msg
	}
}
