package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending         = "pending"
	JobStatusRunning         = "running"
	JobStatusSucceeded       = "succeeded"
	JobStatusFailedRetryable = "failed_retryable"
	JobStatusFailedTerminal  = "failed_terminal"
)

const (
	ActionPublish   = "publish"
	ActionUnpublish = "unpublish"
	ActionRefresh   = "refresh"
)

// Job is one queued synchronization intent for a (property, provider, action)
// tuple. Jobs are created by enqueue, mutated only by the dispatcher, and
// retained indefinitely for audit.
type Job struct {
	ID           uuid.UUID  `db:"id"            json:"id"`
	TenantID     uuid.UUID  `db:"tenant_id"     json:"tenant_id"`
	PropertyID   uuid.UUID  `db:"property_id"   json:"property_id"`
	Provider     string     `db:"provider"      json:"provider"`
	Action       string     `db:"action"        json:"action"`
	Status       string     `db:"status"        json:"status"`
	AttemptCount int        `db:"attempt_count" json:"attempt_count"`
	MaxAttempts  int        `db:"max_attempts"  json:"max_attempts"`
	LastError    *string    `db:"last_error"    json:"last_error,omitempty"`
	RunAt        time.Time  `db:"run_at"        json:"run_at"`
	ClaimedAt    *time.Time `db:"claimed_at"    json:"claimed_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// IsActive reports whether the job still occupies its (property, provider)
// slot: at most one active job may exist per pair. A retryable failure keeps
// its slot — the job is still going to run again.
func (j *Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning ||
		j.Status == JobStatusFailedRetryable
}

// IsTerminal reports whether the job reached a final state. Terminal states
// are never left again.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailedTerminal
}

// ValidAction reports whether s is a known synchronization action.
func ValidAction(s string) bool {
	return s == ActionPublish || s == ActionUnpublish || s == ActionRefresh
}
