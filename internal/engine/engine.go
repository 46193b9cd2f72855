// Package engine is the synchronization core: the job queue with its dedup
// and supersession rules, and the dispatcher that drives jobs through the
// state machine against the portal adapters.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casafacil/portalsync/internal/cache"
	"github.com/casafacil/portalsync/internal/portal"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
	"github.com/google/uuid"
)

const jobStatusTTL = 30 * time.Minute

// Policy holds the dispatcher's retry and timeout knobs. Values come from
// configuration; the defaults live in internal/config.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	CallTimeout time.Duration
}

// AdapterResolver selects the portal adapter for a configured account.
type AdapterResolver interface {
	ForAccount(acct *models.Account) (models.PortalAdapter, error)
}

// Engine owns all writes to jobs and listings. Everything else reads.
type Engine struct {
	store    store.Store
	cache    cache.Cache
	adapters AdapterResolver
	policy   Policy
}

func New(s store.Store, c cache.Cache, adapters AdapterResolver, policy Policy) *Engine {
	return &Engine{store: s, cache: c, adapters: adapters, policy: policy}
}

// EnqueueResult reports how an enqueue request fared per provider: jobs
// queued, and per-provider rejections for the rest. Partial success is
// deliberate — one misconfigured provider must not block the others.
type EnqueueResult struct {
	QueuedJobs int               `json:"queued_jobs"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// Enqueue records one synchronization intent per provider. An identical
// active (property, provider, action) tuple is reused untouched; an active
// job with a conflicting action is superseded, last-writer-wins.
func (e *Engine) Enqueue(ctx context.Context, tenantID, propertyID uuid.UUID, providers []string, action string) (*EnqueueResult, error) {
	if !models.ValidAction(action) {
		return nil, fmt.Errorf("invalid action %q", action)
	}

	if _, err := e.store.GetProperty(ctx, propertyID, tenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("property %s: %w", propertyID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("resolve property: %w", err)
	}

	result := &EnqueueResult{Errors: map[string]string{}}
	now := time.Now().UTC()

	for _, provider := range providers {
		if !portal.Known(provider) {
			result.Errors[provider] = "unknown provider"
			continue
		}

		active, err := e.store.GetActiveJob(ctx, tenantID, propertyID, provider)
		switch {
		case err == nil:
			if active.Action == action {
				// Identical intent already queued; nothing to add.
				continue
			}
			if err := e.store.SupersedeJob(ctx, active.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				result.Errors[provider] = fmt.Sprintf("supersede active job: %v", err)
				continue
			}
			e.mirrorStatus(ctx, active.ID, models.JobStatusFailedTerminal)
		case errors.Is(err, store.ErrNotFound):
			// No active job; free to enqueue.
		default:
			result.Errors[provider] = fmt.Sprintf("check active job: %v", err)
			continue
		}

		job := &models.Job{
			ID:          uuid.New(),
			TenantID:    tenantID,
			PropertyID:  propertyID,
			Provider:    provider,
			Action:      action,
			Status:      models.JobStatusPending,
			MaxAttempts: e.policy.MaxAttempts,
			RunAt:       now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.store.CreateJob(ctx, job); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				// A concurrent enqueue won the slot; treat as reused.
				continue
			}
			result.Errors[provider] = fmt.Sprintf("create job: %v", err)
			continue
		}

		e.mirrorStatus(ctx, job.ID, models.JobStatusPending)
		result.QueuedJobs++
	}

	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result, nil
}

// mirrorStatus keeps the Redis job-status mirror updated, best effort: the
// database remains the source of truth.
func (e *Engine) mirrorStatus(ctx context.Context, jobID uuid.UUID, status string) {
	_ = e.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL)
}
