package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casafacil/portalsync/internal/portal"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
	"github.com/google/uuid"
)

const defaultSweepLimit = 50

// ErrJobNotRunnable is returned by RunJob when the named job cannot be
// claimed: it is already running, or it reached a terminal state. Terminal
// jobs are never auto-retried — the operator re-enqueues instead.
var ErrJobNotRunnable = errors.New("job is not in a runnable state")

// RunPending claims and processes up to limit due jobs, oldest first. Safe to
// call from overlapping sweeps: the claim is a conditional update, so a job
// is attempted by exactly one caller per cycle and losing claimers skip it.
func (e *Engine) RunPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultSweepLimit
	}

	ids, err := e.store.ListDueJobIDs(ctx, time.Now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}

	attempted := 0
	for _, id := range ids {
		job, err := e.store.ClaimJob(ctx, id)
		if errors.Is(err, store.ErrClaimLost) {
			continue
		}
		if err != nil {
			return attempted, fmt.Errorf("claim job %s: %w", id, err)
		}
		attempted++
		e.process(ctx, job)
	}
	return attempted, nil
}

// RunJob runs one named job through the same algorithm as the sweep,
// regardless of queue order. Used for manual operator retry.
func (e *Engine) RunJob(ctx context.Context, jobID, tenantID uuid.UUID) (*models.Job, error) {
	if _, err := e.store.GetJob(ctx, jobID, tenantID); err != nil {
		return nil, err
	}

	job, err := e.store.ClaimJob(ctx, jobID)
	if errors.Is(err, store.ErrClaimLost) {
		return nil, ErrJobNotRunnable
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	e.process(ctx, job)
	return e.store.GetJob(ctx, jobID, tenantID)
}

// process drives one claimed job to its next state. All provider failures are
// classified here, before any state mutation; an unclassified error counts as
// transient so nothing is silently dropped or wrongly made terminal.
func (e *Engine) process(ctx context.Context, job *models.Job) {
	acct, err := e.store.GetAccount(ctx, job.TenantID, job.Provider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.failTerminal(ctx, job, fmt.Errorf("%w: no account configured for %q", portal.ErrConfiguration, job.Provider))
		} else {
			e.retryOrExhaust(ctx, job, fmt.Errorf("%w: resolve account: %v", portal.ErrTransient, err))
		}
		return
	}
	if !acct.IsActive {
		e.failTerminal(ctx, job, fmt.Errorf("%w: account %q is inactive", portal.ErrConfiguration, job.Provider))
		return
	}

	adapter, err := e.adapters.ForAccount(acct)
	if err != nil {
		e.failTerminal(ctx, job, err)
		return
	}

	prop, err := e.store.GetProperty(ctx, job.PropertyID, job.TenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.failTerminal(ctx, job, fmt.Errorf("%w: property %s no longer exists", portal.ErrConfiguration, job.PropertyID))
		} else {
			e.retryOrExhaust(ctx, job, fmt.Errorf("%w: resolve property: %v", portal.ErrTransient, err))
		}
		return
	}

	var externalID *string
	if listing, err := e.store.GetListing(ctx, job.TenantID, job.PropertyID, job.Provider); err == nil {
		externalID = listing.ExternalListingID
	}

	callCtx, cancel := context.WithTimeout(ctx, e.policy.CallTimeout)
	defer cancel()

	result, err := adapter.Perform(callCtx, models.AdapterRequest{
		Account:           *acct,
		Property:          *prop,
		Action:            job.Action,
		ExternalListingID: externalID,
	})
	if err != nil {
		if portal.Retryable(err) {
			e.retryOrExhaust(ctx, job, err)
		} else {
			e.failTerminal(ctx, job, err)
		}
		return
	}

	e.succeed(ctx, job, result)
}

func (e *Engine) succeed(ctx context.Context, job *models.Job, result models.AdapterResult) {
	if err := e.store.FinishJob(ctx, job.ID, models.JobStatusSucceeded); err != nil {
		if errors.Is(err, store.ErrClaimLost) {
			slog.Info("job superseded mid-flight, dropping outcome", "job_id", job.ID)
			return
		}
		slog.Error("finish job", "job_id", job.ID, "error", err)
		return
	}
	e.mirrorStatus(ctx, job.ID, models.JobStatusSucceeded)
	e.applyListingSuccess(ctx, job, result)
}

// retryOrExhaust requeues a transient failure with backoff, or makes it
// terminal once the attempt budget is spent. The attempt was already counted
// at claim time.
func (e *Engine) retryOrExhaust(ctx context.Context, job *models.Job, cause error) {
	msg := truncate(cause.Error(), 1000)

	if job.AttemptCount >= job.MaxAttempts {
		e.failTerminal(ctx, job, fmt.Errorf("retries exhausted after %d attempts: %s", job.AttemptCount, msg))
		return
	}

	delay := Backoff(e.policy.BackoffBase, e.policy.BackoffCap, job.AttemptCount)
	if err := e.store.RescheduleJob(ctx, job.ID, time.Now().UTC().Add(delay), msg); err != nil {
		if errors.Is(err, store.ErrClaimLost) {
			slog.Info("job superseded mid-flight, dropping retry", "job_id", job.ID)
			return
		}
		slog.Error("reschedule job", "job_id", job.ID, "error", err)
		return
	}
	e.mirrorStatus(ctx, job.ID, models.JobStatusFailedRetryable)
	slog.Info("job rescheduled",
		"job_id", job.ID,
		"provider", job.Provider,
		"attempt", job.AttemptCount,
		"retry_in", delay.String(),
	)
}

func (e *Engine) failTerminal(ctx context.Context, job *models.Job, cause error) {
	msg := truncate(cause.Error(), 1000)

	if err := e.store.FinishJob(ctx, job.ID, models.JobStatusFailedTerminal, store.WithLastError(msg)); err != nil {
		if errors.Is(err, store.ErrClaimLost) {
			slog.Info("job superseded mid-flight, dropping failure", "job_id", job.ID)
			return
		}
		slog.Error("finish job", "job_id", job.ID, "error", err)
		return
	}
	e.mirrorStatus(ctx, job.ID, models.JobStatusFailedTerminal)
	e.applyListingError(ctx, job, msg)
	slog.Warn("job failed terminally",
		"job_id", job.ID,
		"provider", job.Provider,
		"action", job.Action,
		"error", msg,
	)
}

// applyListingSuccess writes the listing as the terminal effect of a
// succeeded job: publish marks it published (with the provider's id when one
// was returned), unpublish clears it, refresh only wipes the stale error.
func (e *Engine) applyListingSuccess(ctx context.Context, job *models.Job, result models.AdapterResult) {
	l := &models.Listing{
		ID:         uuid.New(),
		TenantID:   job.TenantID,
		PropertyID: job.PropertyID,
		Provider:   job.Provider,
	}

	switch job.Action {
	case models.ActionPublish:
		l.Status = models.ListingStatusPublished
		l.ExternalListingID = result.ExternalListingID
	case models.ActionUnpublish:
		l.Status = models.ListingStatusUnpublished
	case models.ActionRefresh:
		l.Status = models.ListingStatusUnpublished
		if existing, err := e.store.GetListing(ctx, job.TenantID, job.PropertyID, job.Provider); err == nil {
			l.Status = existing.Status
			l.ExternalListingID = existing.ExternalListingID
		}
		if result.ExternalListingID != nil {
			l.ExternalListingID = result.ExternalListingID
		}
	}

	if _, err := e.store.UpsertListing(ctx, l); err != nil {
		slog.Error("update listing", "job_id", job.ID, "error", err)
	}
}

func (e *Engine) applyListingError(ctx context.Context, job *models.Job, msg string) {
	l := &models.Listing{
		ID:         uuid.New(),
		TenantID:   job.TenantID,
		PropertyID: job.PropertyID,
		Provider:   job.Provider,
		Status:     models.ListingStatusError,
		LastError:  &msg,
	}
	if existing, err := e.store.GetListing(ctx, job.TenantID, job.PropertyID, job.Provider); err == nil {
		l.ExternalListingID = existing.ExternalListingID
	}
	if _, err := e.store.UpsertListing(ctx, l); err != nil {
		slog.Error("update listing", "job_id", job.ID, "error", err)
	}
}

// truncate shortens s to at most max bytes for storage as an error message.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
