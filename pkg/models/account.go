package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ModeFeed = "feed"
	ModeAPI  = "api"
)

// Credentials is the opaque provider-specific secret bundle for api-mode accounts.
// Stored as jsonb; never echoed back in full through the API.
type Credentials map[string]string

// Account is a tenant's configuration for one portal provider.
// Accounts are never hard-deleted, only deactivated, so that job history
// stays referentially intact.
type Account struct {
	ID              uuid.UUID   `db:"id"                json:"id"`
	TenantID        uuid.UUID   `db:"tenant_id"         json:"tenant_id"`
	Provider        string      `db:"provider"          json:"provider"`
	Mode            string      `db:"mode"              json:"mode"`
	IsActive        bool        `db:"is_active"         json:"is_active"`
	Credentials     Credentials `db:"credentials"       json:"-"`
	FeedTokenPrefix *string     `db:"feed_token_prefix" json:"-"`
	FeedTokenHash   *string     `db:"feed_token_hash"   json:"-"`
	CreatedAt       time.Time   `db:"created_at"        json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"        json:"updated_at"`
}

// HasFeedToken reports whether a feed token has ever been issued for the
// account. The raw token itself is never retrievable after rotation returns.
func (a *Account) HasFeedToken() bool {
	return a.FeedTokenHash != nil && *a.FeedTokenHash != ""
}

// HasCredentials reports whether api-mode secret material is present.
func (a *Account) HasCredentials() bool {
	return len(a.Credentials) > 0
}
