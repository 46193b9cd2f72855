package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ListingStatusUnpublished = "unpublished"
	ListingStatusPending     = "pending"
	ListingStatusPublished   = "published"
	ListingStatusError       = "error"
)

// Listing is the current externally-observed publication state for a
// (property, provider) pair. Written exclusively by the dispatcher as the
// terminal effect of a job, so readers never observe a state that does not
// correspond to a completed attempt.
type Listing struct {
	ID                uuid.UUID `db:"id"                  json:"id"`
	TenantID          uuid.UUID `db:"tenant_id"           json:"tenant_id"`
	PropertyID        uuid.UUID `db:"property_id"         json:"property_id"`
	Provider          string    `db:"provider"            json:"provider"`
	Status            string    `db:"status"              json:"status"`
	ExternalListingID *string   `db:"external_listing_id" json:"external_listing_id,omitempty"`
	LastError         *string   `db:"last_error"          json:"last_error,omitempty"`
	CreatedAt         time.Time `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"          json:"updated_at"`
}
