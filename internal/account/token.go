package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/casafacil/portalsync/internal/portal"
	"github.com/casafacil/portalsync/internal/store"
	"github.com/casafacil/portalsync/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const tokenPrefixLen = 12

var ErrInvalidFeedToken = errors.New("invalid feed token")

// TokenService issues and invalidates feed access tokens. The plaintext token
// is embedded in the returned feed URL exactly once; only a bcrypt hash is
// stored, so the token is never retrievable again. Rotating replaces the hash,
// which invalidates the previous token immediately.
type TokenService struct {
	store       store.Store
	feedBaseURL string
}

func NewTokenService(s store.Store, feedBaseURL string) *TokenService {
	return &TokenService{store: s, feedBaseURL: feedBaseURL}
}

// Rotate issues a fresh feed token for (tenant, provider) and returns the full
// feed URL containing it. A missing account is created lazily in feed mode,
// inactive, matching how tenants configure portals on first use.
func (t *TokenService) Rotate(ctx context.Context, tenantID uuid.UUID, provider string) (string, error) {
	desc, ok := portal.Lookup(provider)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if !desc.SupportsFeed {
		return "", fmt.Errorf("%w: %q has no feed endpoint", ErrUnsupportedMode, provider)
	}

	if _, err := t.store.GetAccount(ctx, tenantID, provider); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		_, err = t.store.UpsertAccount(ctx, &models.Account{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Provider:  provider,
			Mode:      models.ModeFeed,
			IsActive:  false,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return "", err
		}
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := "psf_" + hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}

	if err := t.store.SetFeedToken(ctx, tenantID, provider, token[:tokenPrefixLen], string(hash)); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/feeds/%s/%s.xml", t.feedBaseURL, provider, token), nil
}

// VerifyFeedToken resolves the account a presented feed token belongs to.
// Lookup goes through the stored prefix, then the bcrypt comparison decides.
func (t *TokenService) VerifyFeedToken(ctx context.Context, provider, token string) (*models.Account, error) {
	if len(token) < tokenPrefixLen {
		return nil, ErrInvalidFeedToken
	}

	acct, err := t.store.GetAccountByFeedTokenPrefix(ctx, provider, token[:tokenPrefixLen])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidFeedToken
		}
		return nil, err
	}

	if acct.FeedTokenHash == nil ||
		bcrypt.CompareHashAndPassword([]byte(*acct.FeedTokenHash), []byte(token)) != nil {
		return nil, ErrInvalidFeedToken
	}
	return acct, nil
}
