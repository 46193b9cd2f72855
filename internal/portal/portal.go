// Package portal holds the provider catalog, the error taxonomy and the
// adapters that translate synchronization jobs into provider-specific effects.
package portal

import (
	"fmt"
	"time"

	"github.com/casafacil/portalsync/internal/cache"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
)

// Adapters resolves the adapter for an account. Selection is a pure function
// of the account's mode; an unsupported mode is a configuration error.
type Adapters struct {
	feed *FeedAdapter
	api  *APIAdapter
}

// NewAdapters builds the adapter set shared by all dispatcher invocations.
func NewAdapters(s store.Store, c cache.Cache, callTimeout time.Duration) *Adapters {
	return &Adapters{
		feed: NewFeedAdapter(s, c),
		api:  NewAPIAdapter(callTimeout),
	}
}

// ForAccount returns the adapter matching the account's mode.
func (a *Adapters) ForAccount(acct *models.Account) (models.PortalAdapter, error) {
	desc, ok := Lookup(acct.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfiguration, acct.Provider)
	}
	if !desc.SupportsMode(acct.Mode) {
		return nil, fmt.Errorf("%w: provider %q does not support mode %q", ErrConfiguration, acct.Provider, acct.Mode)
	}
	switch acct.Mode {
	case models.ModeFeed:
		return a.feed, nil
	case models.ModeAPI:
		return a.api, nil
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", ErrConfiguration, acct.Mode)
	}
}
