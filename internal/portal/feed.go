package portal

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/casafacil/portalsync/internal/cache"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
	"github.com/google/uuid"
)

// FeedAdapter implements publishing for feed-mode accounts. There is no
// outbound call: publishing means the property is included in the tenant's
// feed document, which the portal pulls on its own schedule. The job still
// runs through the full state machine so the attempt is audited and the
// listing state updated.
type FeedAdapter struct {
	store store.Store
	cache cache.Cache
}

func NewFeedAdapter(s store.Store, c cache.Cache) *FeedAdapter {
	return &FeedAdapter{store: s, cache: c}
}

func (f *FeedAdapter) Mode() string { return models.ModeFeed }

func (f *FeedAdapter) Perform(ctx context.Context, req models.AdapterRequest) (models.AdapterResult, error) {
	tenantID := req.Account.TenantID
	provider := req.Account.Provider

	switch req.Action {
	case models.ActionPublish:
		if err := f.store.AddFeedEntry(ctx, tenantID, provider, req.Property.ID); err != nil {
			return models.AdapterResult{}, fmt.Errorf("%w: %v", ErrTransient, err)
		}
	case models.ActionUnpublish:
		if err := f.store.RemoveFeedEntry(ctx, tenantID, provider, req.Property.ID); err != nil {
			return models.AdapterResult{}, fmt.Errorf("%w: %v", ErrTransient, err)
		}
	case models.ActionRefresh:
		// The feed is rendered from current property data on pull; refreshing
		// only needs to drop the cached document.
	default:
		return models.AdapterResult{}, fmt.Errorf("%w: unknown action %q", ErrPermanent, req.Action)
	}

	// Best effort: a stale cached document expires on its own TTL.
	_ = f.cache.Delete(ctx, cache.FeedDocumentKey(tenantID, provider))

	return models.AdapterResult{}, nil
}

var _ models.PortalAdapter = (*FeedAdapter)(nil)

// --- Feed document rendering ---

// FeedDocument is the XML document served to feed-mode portals.
type FeedDocument struct {
	XMLName     xml.Name       `xml:"properties"`
	Provider    string         `xml:"provider,attr"`
	GeneratedAt string         `xml:"generated_at,attr"`
	Items       []FeedProperty `xml:"property"`
}

type FeedProperty struct {
	Reference   string  `xml:"reference"`
	Title       string  `xml:"title"`
	Description string  `xml:"description"`
	PriceCents  int64   `xml:"price_cents"`
	City        string  `xml:"city"`
	Bedrooms    int     `xml:"bedrooms"`
	AreaSqm     float64 `xml:"area_sqm"`
}

// FeedService renders per-tenant feed documents with a short-lived Redis cache.
type FeedService struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
}

func NewFeedService(s store.Store, c cache.Cache, ttl time.Duration) *FeedService {
	return &FeedService{store: s, cache: c, ttl: ttl}
}

// Render returns the XML feed for (tenant, provider), serving from cache when
// the adapter has not invalidated it.
func (s *FeedService) Render(ctx context.Context, tenantID uuid.UUID, provider string) ([]byte, error) {
	key := cache.FeedDocumentKey(tenantID, provider)
	if cached, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return cached, nil
	}

	props, err := s.store.ListFeedProperties(ctx, tenantID, provider)
	if err != nil {
		return nil, fmt.Errorf("list feed properties: %w", err)
	}

	doc := FeedDocument{
		Provider:    provider,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Items:       make([]FeedProperty, 0, len(props)),
	}
	for _, p := range props {
		doc.Items = append(doc.Items, FeedProperty{
			Reference:   p.Reference,
			Title:       p.Title,
			Description: p.Description,
			PriceCents:  p.PriceCents,
			City:        p.City,
			Bedrooms:    p.Bedrooms,
			AreaSqm:     p.AreaSqm,
		})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	body = append([]byte(xml.Header), body...)

	_ = s.cache.Set(ctx, key, body, s.ttl)
	return body, nil
}
