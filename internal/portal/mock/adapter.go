// Package mock provides a PortalAdapter test double.
package mock

import (
	"context"

	"github.com/casafacil/portalsync/pkg/models"
)

// Adapter satisfies models.PortalAdapter for testing.
type Adapter struct {
	Mode_       string
	PerformFunc func(ctx context.Context, req models.AdapterRequest) (models.AdapterResult, error)

	// Requests records every Perform call for assertions.
	Requests []models.AdapterRequest
}

func (m *Adapter) Mode() string {
	if m.Mode_ == "" {
		return models.ModeAPI
	}
	return m.Mode_
}

func (m *Adapter) Perform(ctx context.Context, req models.AdapterRequest) (models.AdapterResult, error) {
	m.Requests = append(m.Requests, req)
	if m.PerformFunc != nil {
		return m.PerformFunc(ctx, req)
	}
	return models.AdapterResult{}, nil
}

var _ models.PortalAdapter = (*Adapter)(nil)
