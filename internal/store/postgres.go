package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casafacil/portalsync/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM tenants WHERE slug = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Properties ---

func (s *PostgresStore) GetProperty(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Property, error) {
	var p models.Property
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, reference, title, description, price_cents, city, bedrooms, area_sqm, is_active, created_at, updated_at
		 FROM properties WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&p.ID, &p.TenantID, &p.Reference, &p.Title, &p.Description, &p.PriceCents,
		&p.City, &p.Bedrooms, &p.AreaSqm, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get property: %w", err)
	}
	return &p, nil
}

// CreateProperty inserts a property row. Properties are owned by the CRM core;
// this path exists for the ingestion boundary and for tests.
func (s *PostgresStore) CreateProperty(ctx context.Context, p *models.Property) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO properties (id, tenant_id, reference, title, description, price_cents, city, bedrooms, area_sqm, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.TenantID, p.Reference, p.Title, p.Description, p.PriceCents,
		p.City, p.Bedrooms, p.AreaSqm, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create property: %w", err)
	}
	return nil
}

// --- Portal Accounts ---

const accountColumns = `id, tenant_id, provider, mode, is_active, credentials, feed_token_prefix, feed_token_hash, created_at, updated_at`

func (s *PostgresStore) GetAccount(ctx context.Context, tenantID uuid.UUID, provider string) (*models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM portal_accounts WHERE tenant_id = $1 AND provider = $2`,
		tenantID, provider,
	).Scan(&a.ID, &a.TenantID, &a.Provider, &a.Mode, &a.IsActive, &a.Credentials,
		&a.FeedTokenPrefix, &a.FeedTokenHash, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetAccountByFeedTokenPrefix(ctx context.Context, provider, prefix string) (*models.Account, error) {
	var a models.Account
	err := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM portal_accounts WHERE provider = $1 AND feed_token_prefix = $2`,
		provider, prefix,
	).Scan(&a.ID, &a.TenantID, &a.Provider, &a.Mode, &a.IsActive, &a.Credentials,
		&a.FeedTokenPrefix, &a.FeedTokenHash, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account by feed token prefix: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]*models.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM portal_accounts WHERE tenant_id = $1 ORDER BY provider`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Provider, &a.Mode, &a.IsActive, &a.Credentials,
			&a.FeedTokenPrefix, &a.FeedTokenHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// UpsertAccount writes the full account configuration for (tenant, provider).
// Repeated calls overwrite; they never create duplicates. Feed token material
// is only ever touched by SetFeedToken, so it survives mode changes.
func (s *PostgresStore) UpsertAccount(ctx context.Context, acct *models.Account) (*models.Account, error) {
	creds := acct.Credentials
	if creds == nil {
		creds = models.Credentials{}
	}
	var result models.Account
	err := s.pool.QueryRow(ctx,
		`INSERT INTO portal_accounts (id, tenant_id, provider, mode, is_active, credentials, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 ON CONFLICT (tenant_id, provider) DO UPDATE SET
		   mode = EXCLUDED.mode,
		   is_active = EXCLUDED.is_active,
		   credentials = EXCLUDED.credentials,
		   updated_at = NOW()
		 RETURNING `+accountColumns,
		acct.ID, acct.TenantID, acct.Provider, acct.Mode, acct.IsActive, creds,
	).Scan(&result.ID, &result.TenantID, &result.Provider, &result.Mode, &result.IsActive,
		&result.Credentials, &result.FeedTokenPrefix, &result.FeedTokenHash,
		&result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return &result, nil
}

// SetFeedToken replaces the feed token reference for an account. The previous
// token stops matching the stored hash the moment this commits.
func (s *PostgresStore) SetFeedToken(ctx context.Context, tenantID uuid.UUID, provider, prefix, hash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE portal_accounts SET feed_token_prefix = $3, feed_token_hash = $4, updated_at = NOW()
		 WHERE tenant_id = $1 AND provider = $2`, tenantID, provider, prefix, hash)
	if err != nil {
		return fmt.Errorf("set feed token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Portal Jobs ---

const jobColumns = `id, tenant_id, property_id, provider, action, status, attempt_count, max_attempts, last_error, run_at, claimed_at, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.TenantID, &j.PropertyID, &j.Provider, &j.Action, &j.Status,
		&j.AttemptCount, &j.MaxAttempts, &j.LastError, &j.RunAt,
		&j.ClaimedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts a pending job. Returns ErrDuplicateKey when an active job
// already occupies the (tenant, property, provider) slot — enforced by a
// partial unique index, so the check holds under concurrent enqueues.
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO portal_jobs (id, tenant_id, property_id, provider, action, status, attempt_count, max_attempts, run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.TenantID, job.PropertyID, job.Provider, job.Action, job.Status,
		job.AttemptCount, job.MaxAttempts, job.RunAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM portal_jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) GetActiveJob(ctx context.Context, tenantID, propertyID uuid.UUID, provider string) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM portal_jobs
		 WHERE tenant_id = $1 AND property_id = $2 AND provider = $3
		   AND status IN ('pending', 'running', 'failed_retryable')`,
		tenantID, propertyID, provider))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return j, nil
}

// SupersedeJob terminates an active job because a conflicting action was
// requested for the same property and provider. Last-writer-wins.
func (s *PostgresStore) SupersedeJob(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE portal_jobs
		    SET status = 'failed_terminal', last_error = 'superseded', completed_at = NOW(), updated_at = NOW()
		  WHERE id = $1 AND status IN ('pending', 'running', 'failed_retryable')`, id)
	if err != nil {
		return fmt.Errorf("supersede job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimJob atomically transitions a claimable job to running and counts the
// attempt. The conditional update is the exclusivity guarantee: under
// concurrent runners at most one claim matches, every other caller gets
// ErrClaimLost.
func (s *PostgresStore) ClaimJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE portal_jobs
		    SET status = 'running', attempt_count = attempt_count + 1, claimed_at = NOW(), updated_at = NOW()
		  WHERE id = $1 AND status IN ('pending', 'failed_retryable')
		  RETURNING `+jobColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClaimLost
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

// ListDueJobIDs selects claimable jobs whose backoff delay has elapsed,
// oldest first across all tenants so no tenant or provider starves another.
func (s *PostgresStore) ListDueJobIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM portal_jobs
		  WHERE status IN ('pending', 'failed_retryable') AND run_at <= $1
		  ORDER BY created_at ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FinishJob moves a running job to a final state. Conditioned on the job still
// being running: a job superseded mid-flight stays terminal, so the losing
// attempt gets ErrClaimLost instead of overwriting it.
func (s *PostgresStore) FinishJob(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	query := `UPDATE portal_jobs SET status = $2, completed_at = NOW(), updated_at = NOW()`
	args := []any{id, status}
	if params.LastError != nil {
		query += `, last_error = $3`
		args = append(args, *params.LastError)
	}
	query += ` WHERE id = $1 AND status = 'running'`

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimLost
	}
	return nil
}

// RescheduleJob returns a running job to the queue after a transient failure,
// carrying the backoff deadline for the next attempt.
func (s *PostgresStore) RescheduleJob(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE portal_jobs
		    SET status = 'failed_retryable', run_at = $2, last_error = $3,
		        claimed_at = NULL, updated_at = NOW()
		  WHERE id = $1 AND status = 'running'`, id, runAt, lastError)
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClaimLost
	}
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.PropertyID != nil {
		conditions = append(conditions, fmt.Sprintf("property_id = $%d", argIdx))
		args = append(args, *filter.PropertyID)
		argIdx++
	}
	if filter.Provider != "" {
		conditions = append(conditions, fmt.Sprintf("provider = $%d", argIdx))
		args = append(args, filter.Provider)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM portal_jobs WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT `+jobColumns+` FROM portal_jobs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// --- Portal Listings ---

const listingColumns = `id, tenant_id, property_id, provider, status, external_listing_id, last_error, created_at, updated_at`

func (s *PostgresStore) GetListing(ctx context.Context, tenantID, propertyID uuid.UUID, provider string) (*models.Listing, error) {
	var l models.Listing
	err := s.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM portal_listings
		 WHERE tenant_id = $1 AND property_id = $2 AND provider = $3`,
		tenantID, propertyID, provider,
	).Scan(&l.ID, &l.TenantID, &l.PropertyID, &l.Provider, &l.Status,
		&l.ExternalListingID, &l.LastError, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return &l, nil
}

func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	var result models.Listing
	err := s.pool.QueryRow(ctx,
		`INSERT INTO portal_listings (id, tenant_id, property_id, provider, status, external_listing_id, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 ON CONFLICT (tenant_id, property_id, provider) DO UPDATE SET
		   status = EXCLUDED.status,
		   external_listing_id = EXCLUDED.external_listing_id,
		   last_error = EXCLUDED.last_error,
		   updated_at = NOW()
		 RETURNING `+listingColumns,
		l.ID, l.TenantID, l.PropertyID, l.Provider, l.Status, l.ExternalListingID, l.LastError,
	).Scan(&result.ID, &result.TenantID, &result.PropertyID, &result.Provider, &result.Status,
		&result.ExternalListingID, &result.LastError, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert listing: %w", err)
	}
	return &result, nil
}

func (s *PostgresStore) ListListings(ctx context.Context, filter ListingFilter) ([]*models.Listing, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.PropertyID != nil {
		conditions = append(conditions, fmt.Sprintf("property_id = $%d", argIdx))
		args = append(args, *filter.PropertyID)
		argIdx++
	}
	if filter.Provider != "" {
		conditions = append(conditions, fmt.Sprintf("provider = $%d", argIdx))
		args = append(args, filter.Provider)
		argIdx++
	}

	query := `SELECT ` + listingColumns + ` FROM portal_listings WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY updated_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.TenantID, &l.PropertyID, &l.Provider, &l.Status,
			&l.ExternalListingID, &l.LastError, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, &l)
	}
	return listings, rows.Err()
}

// --- Feed Entries ---

func (s *PostgresStore) AddFeedEntry(ctx context.Context, tenantID uuid.UUID, provider string, propertyID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO portal_feed_entries (tenant_id, provider, property_id, added_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (tenant_id, provider, property_id) DO NOTHING`,
		tenantID, provider, propertyID)
	if err != nil {
		return fmt.Errorf("add feed entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveFeedEntry(ctx context.Context, tenantID uuid.UUID, provider string, propertyID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM portal_feed_entries WHERE tenant_id = $1 AND provider = $2 AND property_id = $3`,
		tenantID, provider, propertyID)
	if err != nil {
		return fmt.Errorf("remove feed entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFeedProperties(ctx context.Context, tenantID uuid.UUID, provider string) ([]*models.Property, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.tenant_id, p.reference, p.title, p.description, p.price_cents, p.city, p.bedrooms, p.area_sqm, p.is_active, p.created_at, p.updated_at
		 FROM portal_feed_entries fe
		 JOIN properties p ON p.id = fe.property_id AND p.tenant_id = fe.tenant_id
		 WHERE fe.tenant_id = $1 AND fe.provider = $2 AND p.is_active
		 ORDER BY p.reference`, tenantID, provider)
	if err != nil {
		return nil, fmt.Errorf("list feed properties: %w", err)
	}
	defer rows.Close()

	var props []*models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Reference, &p.Title, &p.Description, &p.PriceCents,
			&p.City, &p.Bedrooms, &p.AreaSqm, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan feed property: %w", err)
		}
		props = append(props, &p)
	}
	return props, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
