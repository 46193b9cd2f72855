package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/casafacil/portalsync/pkg/models"
)

// APIAdapter implements publishing for api-mode accounts by calling the
// portal's listings API directly. HTTP outcomes are folded into the portal
// error taxonomy: 408/429/5xx and transport failures are transient, any
// other non-2xx is permanent.
type APIAdapter struct {
	client *http.Client
}

func NewAPIAdapter(timeout time.Duration) *APIAdapter {
	return &APIAdapter{client: &http.Client{Timeout: timeout}}
}

func (a *APIAdapter) Mode() string { return models.ModeAPI }

type listingPayload struct {
	Reference   string  `json:"reference"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	PriceCents  int64   `json:"price_cents"`
	City        string  `json:"city"`
	Bedrooms    int     `json:"bedrooms"`
	AreaSqm     float64 `json:"area_sqm"`
}

type listingResponse struct {
	ListingID string `json:"listing_id"`
}

func (a *APIAdapter) Perform(ctx context.Context, req models.AdapterRequest) (models.AdapterResult, error) {
	desc, ok := Lookup(req.Account.Provider)
	if !ok {
		return models.AdapterResult{}, fmt.Errorf("%w: unknown provider %q", ErrConfiguration, req.Account.Provider)
	}
	if !req.Account.HasCredentials() {
		return models.AdapterResult{}, fmt.Errorf("%w: account %q has no credentials", ErrConfiguration, req.Account.Provider)
	}

	switch req.Action {
	case models.ActionPublish, models.ActionRefresh:
		return a.upsertListing(ctx, desc, req)
	case models.ActionUnpublish:
		return models.AdapterResult{}, a.deleteListing(ctx, desc, req)
	default:
		return models.AdapterResult{}, fmt.Errorf("%w: unknown action %q", ErrPermanent, req.Action)
	}
}

// upsertListing creates the listing on first publish and updates it once the
// provider has assigned an external id.
func (a *APIAdapter) upsertListing(ctx context.Context, desc Descriptor, req models.AdapterRequest) (models.AdapterResult, error) {
	body, err := json.Marshal(listingPayload{
		Reference:   req.Property.Reference,
		Title:       req.Property.Title,
		Description: req.Property.Description,
		PriceCents:  req.Property.PriceCents,
		City:        req.Property.City,
		Bedrooms:    req.Property.Bedrooms,
		AreaSqm:     req.Property.AreaSqm,
	})
	if err != nil {
		return models.AdapterResult{}, fmt.Errorf("%w: marshal listing: %v", ErrPermanent, err)
	}

	method := http.MethodPost
	url := baseURL(desc, req.Account) + "/listings"
	if req.ExternalListingID != nil {
		method = http.MethodPut
		url += "/" + *req.ExternalListingID
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return models.AdapterResult{}, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	a.setAuth(httpReq, req.Account)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return models.AdapterResult{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return models.AdapterResult{}, err
	}

	var lr listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return models.AdapterResult{}, fmt.Errorf("%w: decoding response: %v", ErrTransient, err)
	}

	result := models.AdapterResult{ExternalListingID: req.ExternalListingID}
	if lr.ListingID != "" {
		result.ExternalListingID = &lr.ListingID
	}
	return result, nil
}

func (a *APIAdapter) deleteListing(ctx context.Context, desc Descriptor, req models.AdapterRequest) error {
	// Nothing to remove if the provider never assigned an id.
	if req.ExternalListingID == nil {
		return nil
	}

	url := baseURL(desc, req.Account) + "/listings/" + *req.ExternalListingID
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	a.setAuth(httpReq, req.Account)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	// A listing the provider no longer knows is already unpublished.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return classifyStatus(resp.StatusCode)
}

// baseURL honors a per-account endpoint override (sandbox/staging portals).
func baseURL(desc Descriptor, acct models.Account) string {
	if v := acct.Credentials["base_url"]; v != "" {
		return v
	}
	return desc.BaseURL
}

func (a *APIAdapter) setAuth(r *http.Request, acct models.Account) {
	r.Header.Set("X-Api-Key", acct.Credentials["api_key"])
	if secret, ok := acct.Credentials["api_secret"]; ok {
		r.Header.Set("X-Api-Secret", secret)
	}
}

// classifyStatus maps an HTTP status onto the error taxonomy.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: provider returned status %d", ErrTransient, status)
	default:
		return fmt.Errorf("%w: provider returned status %d", ErrPermanent, status)
	}
}

var _ models.PortalAdapter = (*APIAdapter)(nil)
