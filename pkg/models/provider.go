package models

import "context"

// AdapterRequest is the input to a portal adapter call: one action for one
// property against one configured account.
type AdapterRequest struct {
	Account           Account
	Property          Property
	Action            string
	ExternalListingID *string // set when the provider already knows the listing
}

// AdapterResult carries whatever the provider returned that the engine must
// persist. Feed-mode adapters return no external identifier.
type AdapterResult struct {
	ExternalListingID *string
}

// PortalAdapter performs the provider-specific side of a synchronization job.
// Never call a concrete portal client directly — always inject this interface.
type PortalAdapter interface {
	// Perform executes the requested action. Failures must be classifiable
	// through the portal error taxonomy (configuration, transient, permanent).
	Perform(ctx context.Context, req AdapterRequest) (AdapterResult, error)
	// Mode returns the integration mode the adapter implements ("feed" or "api").
	Mode() string
}
