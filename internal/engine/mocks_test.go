package engine_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
)

// memStore is an in-memory store.Store mirroring the Postgres semantics the
// engine relies on: the active-slot uniqueness, the conditional claim, and
// the conditional finish.
type memStore struct {
	mu         sync.Mutex
	properties map[uuid.UUID]*models.Property
	accounts   map[string]*models.Account // keyed by provider; tests use one tenant
	jobs       map[uuid.UUID]*models.Job
	listings   map[string]*models.Listing // keyed by propertyID/provider

	feedAdds    int
	feedRemoves int
}

func newMemStore() *memStore {
	return &memStore{
		properties: make(map[uuid.UUID]*models.Property),
		accounts:   make(map[string]*models.Account),
		jobs:       make(map[uuid.UUID]*models.Job),
		listings:   make(map[string]*models.Listing),
	}
}

func listingKey(propertyID uuid.UUID, provider string) string {
	return propertyID.String() + "/" + provider
}

func (s *memStore) Ping(_ context.Context) error { return nil }
func (s *memStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error) {
	return nil, store.ErrNotFound
}
func (s *memStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *memStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *memStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *memStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *memStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }

func (s *memStore) GetProperty(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.properties[id]
	if !ok || p.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) CreateProperty(_ context.Context, p *models.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = p
	return nil
}

func (s *memStore) GetAccount(_ context.Context, _ uuid.UUID, provider string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[provider]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) GetAccountByFeedTokenPrefix(_ context.Context, _, _ string) (*models.Account, error) {
	return nil, store.ErrNotFound
}

func (s *memStore) ListAccounts(_ context.Context, _ uuid.UUID) ([]*models.Account, error) {
	return nil, nil
}

func (s *memStore) UpsertAccount(_ context.Context, a *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Provider] = a
	return a, nil
}

func (s *memStore) SetFeedToken(_ context.Context, _ uuid.UUID, _, _, _ string) error { return nil }

func (s *memStore) CreateJob(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.PropertyID == job.PropertyID && j.Provider == job.Provider && j.IsActive() {
			return store.ErrDuplicateKey
		}
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) GetActiveJob(_ context.Context, _ uuid.UUID, propertyID uuid.UUID, provider string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.PropertyID == propertyID && j.Provider == provider && j.IsActive() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memStore) SupersedeJob(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || !j.IsActive() {
		return store.ErrNotFound
	}
	msg := "superseded"
	now := time.Now().UTC()
	j.Status = models.JobStatusFailedTerminal
	j.LastError = &msg
	j.CompletedAt = &now
	return nil
}

func (s *memStore) ClaimJob(_ context.Context, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || (j.Status != models.JobStatusPending && j.Status != models.JobStatusFailedRetryable) {
		return nil, store.ErrClaimLost
	}
	now := time.Now().UTC()
	j.Status = models.JobStatusRunning
	j.AttemptCount++
	j.ClaimedAt = &now
	cp := *j
	return &cp, nil
}

func (s *memStore) ListDueJobIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.Job
	for _, j := range s.jobs {
		if (j.Status == models.JobStatusPending || j.Status == models.JobStatusFailedRetryable) &&
			!j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].CreatedAt.Before(due[b].CreatedAt) })
	var ids []uuid.UUID
	for _, j := range due {
		if len(ids) == limit {
			break
		}
		ids = append(ids, j.ID)
	}
	return ids, nil
}

func (s *memStore) FinishJob(_ context.Context, id uuid.UUID, status string, opts ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != models.JobStatusRunning {
		return store.ErrClaimLost
	}
	now := time.Now().UTC()
	j.Status = status
	j.CompletedAt = &now
	// The option closures mutate store-internal state, so the error message
	// is not observable here; tests assert it through the listing instead.
	_ = opts
	return nil
}

func (s *memStore) RescheduleJob(_ context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != models.JobStatusRunning {
		return store.ErrClaimLost
	}
	j.Status = models.JobStatusFailedRetryable
	j.RunAt = runAt
	j.LastError = &lastError
	j.ClaimedAt = nil
	return nil
}

func (s *memStore) ListJobs(_ context.Context, _ store.JobFilter) ([]*models.Job, int, error) {
	return nil, 0, nil
}

func (s *memStore) GetListing(_ context.Context, _, propertyID uuid.UUID, provider string) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingKey(propertyID, provider)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memStore) UpsertListing(_ context.Context, l *models.Listing) (*models.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := listingKey(l.PropertyID, l.Provider)
	if existing, ok := s.listings[key]; ok {
		existing.Status = l.Status
		existing.ExternalListingID = l.ExternalListingID
		existing.LastError = l.LastError
		cp := *existing
		return &cp, nil
	}
	cp := *l
	s.listings[key] = &cp
	return l, nil
}

func (s *memStore) ListListings(_ context.Context, _ store.ListingFilter) ([]*models.Listing, error) {
	return nil, nil
}

func (s *memStore) AddFeedEntry(_ context.Context, _ uuid.UUID, _ string, _ uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedAdds++
	return nil
}

func (s *memStore) RemoveFeedEntry(_ context.Context, _ uuid.UUID, _ string, _ uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedRemoves++
	return nil
}

func (s *memStore) ListFeedProperties(_ context.Context, _ uuid.UUID, _ string) ([]*models.Property, error) {
	return nil, nil
}

var _ store.Store = (*memStore)(nil)

// memCache records job-status mirror writes.
type memCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

func newMemCache() *memCache {
	return &memCache{statuses: make(map[uuid.UUID]string)}
}

func (c *memCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *memCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *memCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *memCache) Ping(_ context.Context) error                                     { return nil }
func (c *memCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID] = status
	return nil
}
func (c *memCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID]
	return s, ok, nil
}
func (c *memCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// stubResolver hands every account the same adapter.
type stubResolver struct {
	adapter models.PortalAdapter
	err     error
}

func (r *stubResolver) ForAccount(_ *models.Account) (models.PortalAdapter, error) {
	return r.adapter, r.err
}
