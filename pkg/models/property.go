package models

import (
	"time"

	"github.com/google/uuid"
)

// Property is a CRM property record. The sync engine only reads properties;
// creation and updates happen in the CRM core.
type Property struct {
	ID          uuid.UUID `db:"id"          json:"id"`
	TenantID    uuid.UUID `db:"tenant_id"   json:"tenant_id"`
	Reference   string    `db:"reference"   json:"reference"`
	Title       string    `db:"title"       json:"title"`
	Description string    `db:"description" json:"description"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	City        string    `db:"city"        json:"city"`
	Bedrooms    int       `db:"bedrooms"    json:"bedrooms"`
	AreaSqm     float64   `db:"area_sqm"    json:"area_sqm"`
	IsActive    bool      `db:"is_active"   json:"is_active"`
	CreatedAt   time.Time `db:"created_at"  json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"  json:"updated_at"`
}
