package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casafacil/portalsync/internal/engine"
	"github.com/casafacil/portalsync/internal/portal"
	"github.com/casafacil/portalsync/internal/portal/mock"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
)

// seedAccount configures an active api-mode account for the provider.
func seedAccount(t *testing.T, s *memStore, tenantID uuid.UUID, provider string) {
	t.Helper()
	_, err := s.UpsertAccount(context.Background(), &models.Account{
		ID:       uuid.New(),
		TenantID: tenantID,
		Provider: provider,
		Mode:     models.ModeAPI,
		IsActive: true,
		Credentials: models.Credentials{
			"api_key": "k", "api_secret": "s",
		},
	})
	require.NoError(t, err)
}

// enqueueOne queues a single job and returns it.
func enqueueOne(t *testing.T, eng *engine.Engine, s *memStore, tenantID, propID uuid.UUID, provider, action string) *models.Job {
	t.Helper()
	result, err := eng.Enqueue(context.Background(), tenantID, propID, []string{provider}, action)
	require.NoError(t, err)
	require.Equal(t, 1, result.QueuedJobs)

	job, err := s.GetActiveJob(context.Background(), tenantID, propID, provider)
	require.NoError(t, err)
	return job
}

func TestRunPending_PublishSuccess(t *testing.T) {
	ms := newMemStore()
	extID := "ext-42"
	adapter := &mock.Adapter{
		PerformFunc: func(_ context.Context, _ models.AdapterRequest) (models.AdapterResult, error) {
			return models.AdapterResult{ExternalListingID: &extID}, nil
		},
	}
	eng, mc := newTestEngine(ms, adapter)
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	attempted, err := eng.RunPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	got, err := ms.GetJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	assert.NotNil(t, got.CompletedAt)

	listing, err := ms.GetListing(context.Background(), tenantID, propID, "idealista")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusPublished, listing.Status)
	require.NotNil(t, listing.ExternalListingID)
	assert.Equal(t, "ext-42", *listing.ExternalListingID)

	status, ok, _ := mc.GetJobStatus(context.Background(), job.ID)
	assert.True(t, ok)
	assert.Equal(t, models.JobStatusSucceeded, status)

	// Adapter saw the external id slot empty on a first publish
	require.Len(t, adapter.Requests, 1)
	assert.Nil(t, adapter.Requests[0].ExternalListingID)
	assert.Equal(t, models.ActionPublish, adapter.Requests[0].Action)
}

func TestRunPending_UnpublishSuccess(t *testing.T) {
	ms := newMemStore()
	adapter := &mock.Adapter{}
	eng, _ := newTestEngine(ms, adapter)
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")

	// Existing published listing from a previous run
	extID := "ext-7"
	_, err := ms.UpsertListing(context.Background(), &models.Listing{
		ID:                uuid.New(),
		TenantID:          tenantID,
		PropertyID:        propID,
		Provider:          "idealista",
		Status:            models.ListingStatusPublished,
		ExternalListingID: &extID,
	})
	require.NoError(t, err)

	enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionUnpublish)

	_, err = eng.RunPending(context.Background(), 10)
	require.NoError(t, err)

	listing, err := ms.GetListing(context.Background(), tenantID, propID, "idealista")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusUnpublished, listing.Status)

	// The adapter was told which external listing to remove
	require.Len(t, adapter.Requests, 1)
	require.NotNil(t, adapter.Requests[0].ExternalListingID)
	assert.Equal(t, "ext-7", *adapter.Requests[0].ExternalListingID)
}

func TestRunPending_RefreshPreservesListingState(t *testing.T) {
	ms := newMemStore()
	eng, _ := newTestEngine(ms, &mock.Adapter{})
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")

	extID := "ext-9"
	stale := "old failure"
	_, err := ms.UpsertListing(context.Background(), &models.Listing{
		ID:                uuid.New(),
		TenantID:          tenantID,
		PropertyID:        propID,
		Provider:          "idealista",
		Status:            models.ListingStatusPublished,
		ExternalListingID: &extID,
		LastError:         &stale,
	})
	require.NoError(t, err)

	enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionRefresh)

	_, err = eng.RunPending(context.Background(), 10)
	require.NoError(t, err)

	listing, err := ms.GetListing(context.Background(), tenantID, propID, "idealista")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusPublished, listing.Status)
	require.NotNil(t, listing.ExternalListingID)
	assert.Equal(t, "ext-9", *listing.ExternalListingID)
	assert.Nil(t, listing.LastError, "refresh success clears the stale error")
}

func TestRunPending_TransientErrorReschedulesWithBackoff(t *testing.T) {
	ms := newMemStore()
	adapter := &mock.Adapter{
		PerformFunc: func(_ context.Context, _ models.AdapterRequest) (models.AdapterResult, error) {
			return models.AdapterResult{}, fmt.Errorf("%w: 503 from provider", portal.ErrTransient)
		},
	}
	eng, mc := newTestEngine(ms, adapter)
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	before := time.Now().UTC()
	attempted, err := eng.RunPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	got, err := ms.GetJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailedRetryable, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "503")

	// First retry waits at least the base delay
	assert.True(t, got.RunAt.After(before.Add(testPolicy.BackoffBase-time.Second)),
		"run_at %v must carry the backoff delay", got.RunAt)

	status, _, _ := mc.GetJobStatus(context.Background(), job.ID)
	assert.Equal(t, models.JobStatusFailedRetryable, status)

	// Listing untouched by a retryable failure
	_, err = ms.GetListing(context.Background(), tenantID, propID, "idealista")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunPending_RetriesExhaustAtMaxAttempts(t *testing.T) {
	ms := newMemStore()
	calls := 0
	adapter := &mock.Adapter{
		PerformFunc: func(_ context.Context, _ models.AdapterRequest) (models.AdapterResult, error) {
			calls++
			return models.AdapterResult{}, fmt.Errorf("%w: still down", portal.ErrTransient)
		},
	}
	c := newMemCache()
	eng := engine.New(ms, c, &stubResolver{adapter: adapter}, engine.Policy{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
		CallTimeout: time.Second,
	})
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	// Each sweep consumes one attempt; force the job due again in between.
	for i := 0; i < 3; i++ {
		time.Sleep(2 * time.Millisecond)
		attempted, err := eng.RunPending(context.Background(), 10)
		require.NoError(t, err)
		require.Equal(t, 1, attempted, "sweep %d", i)
	}

	assert.Equal(t, 3, calls, "the provider is called exactly max_attempts times")

	got, err := ms.GetJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailedTerminal, got.Status)
	assert.Equal(t, 3, got.AttemptCount)

	// Exhaustion surfaces on the listing
	listing, err := ms.GetListing(context.Background(), tenantID, propID, "idealista")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusError, listing.Status)
	require.NotNil(t, listing.LastError)
	assert.Contains(t, *listing.LastError, "retries exhausted")

	// A further sweep finds nothing to do
	attempted, err := eng.RunPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, attempted)
}

func TestRunPending_PermanentErrorIsTerminalImmediately(t *testing.T) {
	ms := newMemStore()
	adapter := &mock.Adapter{
		PerformFunc: func(_ context.Context, _ models.AdapterRequest) (models.AdapterResult, error) {
			return models.AdapterResult{}, fmt.Errorf("%w: price must be positive", portal.ErrPermanent)
		},
	}
	eng, _ := newTestEngine(ms, adapter)
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	_, err := eng.RunPending(context.Background(), 10)
	require.NoError(t, err)

	got, err := ms.GetJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailedTerminal, got.Status)
	assert.Equal(t, 1, got.AttemptCount)

	listing, err := ms.GetListing(context.Background(), tenantID, propID, "idealista")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusError, listing.Status)
	require.NotNil(t, listing.LastError)
	assert.Contains(t, *listing.LastError, "price must be positive")
}

func TestRunPending_UnclassifiedErrorCountsAsTransient(t *testing.T) {
	ms := newMemStore()
	adapter := &mock.Adapter{
		PerformFunc: func(_ context.Context, _ models.AdapterRequest) (models.AdapterResult, error) {
			return models.AdapterResult{}, errors.New("something odd happened")
		},
	}
	eng, _ := newTestEngine(ms, adapter)
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	_, err := eng.RunPending(context.Background(), 10)
	require.NoError(t, err)

	got, err := ms.GetJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailedRetryable, got.Status)
}

func TestRunPending_MissingAccountIsTerminal(t *testing.T) {
	ms := newMemStore()
	adapter := &mock.Adapter{}
	eng, _ := newTestEngine(ms, adapter)
	tenantID, propID := seedProperty(t, ms)
	// No account configured at all
	job := &models.Job{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PropertyID:  propID,
		Provider:    "casayes",
		Action:      models.ActionPublish,
		Status:      models.JobStatusPending,
		MaxAttempts: 5,
		RunAt:       time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, ms.CreateJob(context.Background(), job))

	_, err := eng.RunPending(context.Background(), 10)
	require.NoError(t, err)

	got, err := ms.GetJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailedTerminal, got.Status)
	assert.Empty(t, adapter.Requests, "the provider is never called without an account")
}

func TestRunPending_InactiveAccountIsTerminal(t *testing.T) {
	ms := newMemStore()
	adapter := &mock.Adapter{}
	eng, _ := newTestEngine(ms, adapter)
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	// Deactivate after enqueue: the dispatcher must notice at run time
	_, err := ms.UpsertAccount(context.Background(), &models.Account{
		ID:       uuid.New(),
		TenantID: tenantID,
		Provider: "idealista",
		Mode:     models.ModeAPI,
		IsActive: false,
	})
	require.NoError(t, err)

	_, err = eng.RunPending(context.Background(), 10)
	require.NoError(t, err)

	got, err := ms.GetJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailedTerminal, got.Status)
	assert.Empty(t, adapter.Requests)
}

func TestRunPending_SkipsJobsClaimedElsewhere(t *testing.T) {
	ms := newMemStore()
	eng, _ := newTestEngine(ms, &mock.Adapter{})
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	// Another runner claims the job between listing and claiming
	_, err := ms.ClaimJob(context.Background(), job.ID)
	require.NoError(t, err)

	attempted, err := eng.RunPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, attempted, "claim races are skips, not attempts")
}

func TestRunPending_HonorsRunAtDeferral(t *testing.T) {
	ms := newMemStore()
	adapter := &mock.Adapter{}
	eng, _ := newTestEngine(ms, adapter)
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")

	job := &models.Job{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PropertyID:  propID,
		Provider:    "idealista",
		Action:      models.ActionPublish,
		Status:      models.JobStatusPending,
		MaxAttempts: 5,
		RunAt:       time.Now().UTC().Add(time.Hour),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, ms.CreateJob(context.Background(), job))

	attempted, err := eng.RunPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, attempted)
	assert.Empty(t, adapter.Requests)
}

func TestRunJob_ReturnsFinalJob(t *testing.T) {
	ms := newMemStore()
	eng, _ := newTestEngine(ms, &mock.Adapter{})
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	got, err := eng.RunJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, got.Status)
}

func TestRunJob_NotFound(t *testing.T) {
	ms := newMemStore()
	eng, _ := newTestEngine(ms, &mock.Adapter{})

	_, err := eng.RunJob(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunJob_WrongTenantIsNotFound(t *testing.T) {
	ms := newMemStore()
	eng, _ := newTestEngine(ms, &mock.Adapter{})
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	_, err := eng.RunJob(context.Background(), job.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunJob_TerminalJobIsNotRunnable(t *testing.T) {
	ms := newMemStore()
	eng, _ := newTestEngine(ms, &mock.Adapter{})
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	_, err := eng.RunJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)

	_, err = eng.RunJob(context.Background(), job.ID, tenantID)
	assert.ErrorIs(t, err, engine.ErrJobNotRunnable)
}

func TestRunJob_ResolverConfigurationErrorIsTerminal(t *testing.T) {
	ms := newMemStore()
	c := newMemCache()
	eng := engine.New(ms, c, &stubResolver{
		err: fmt.Errorf("%w: provider does not support mode", portal.ErrConfiguration),
	}, testPolicy)
	tenantID, propID := seedProperty(t, ms)
	seedAccount(t, ms, tenantID, "idealista")
	job := enqueueOne(t, eng, ms, tenantID, propID, "idealista", models.ActionPublish)

	got, err := eng.RunJob(context.Background(), job.ID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailedTerminal, got.Status)
}
