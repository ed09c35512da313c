package integrations

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("integration not found")

const integrationColumns = `id, name, provider, status, page_id, account_id,
	access_token, refresh_token, token_expiry, token_class,
	api_key_hash, api_key_prefix, leads_count, created_at, updated_at`

// Repository provides data access for integrations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new integrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateAPIKey creates a new random inbound API key and returns the
// plaintext key, its hash and its display prefix. The plaintext key is
// returned only once; only the hash is stored.
func GenerateAPIKey() (plaintext string, hash string, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", "", err
	}
	plaintext = "ink_" + hex.EncodeToString(bytes)
	h := sha256.Sum256([]byte(plaintext))
	hash = hex.EncodeToString(h[:])
	prefix = plaintext[:12] // "ink_" + 8 hex chars
	return plaintext, hash, prefix, nil
}

// HashKey hashes a plaintext API key for lookup.
func HashKey(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

func scanIntegration(row pgx.Row) (Integration, error) {
	var i Integration
	err := row.Scan(
		&i.ID, &i.Name, &i.Provider, &i.Status, &i.PageID, &i.AccountID,
		&i.AccessToken, &i.RefreshToken, &i.TokenExpiry, &i.TokenClass,
		&i.APIKeyHash, &i.APIKeyPrefix, &i.LeadsCount, &i.CreatedAt, &i.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Integration{}, ErrNotFound
	}
	return i, err
}

// GetByID retrieves an integration by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Integration, error) {
	return scanIntegration(r.pool.QueryRow(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE id = $1
	`, id))
}

// GetByPageID retrieves an integration by its platform routing key.
func (r *Repository) GetByPageID(ctx context.Context, provider Provider, pageID string) (Integration, error) {
	return scanIntegration(r.pool.QueryRow(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE provider = $1 AND page_id = $2 AND status <> 'inactive'
	`, provider, pageID))
}

// GetByAPIKeyHash retrieves an active key-authenticated integration.
func (r *Repository) GetByAPIKeyHash(ctx context.Context, keyHash string) (Integration, error) {
	return scanIntegration(r.pool.QueryRow(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE api_key_hash = $1 AND status <> 'inactive'
	`, keyHash))
}

// ListByProvider returns all non-inactive integrations for a provider.
func (r *Repository) ListByProvider(ctx context.Context, provider Provider) ([]Integration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE provider = $1 AND status <> 'inactive'
		ORDER BY created_at
	`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIntegrations(rows)
}

// ListAll returns every integration for the admin surface.
func (r *Repository) ListAll(ctx context.Context) ([]Integration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIntegrations(rows)
}

// ListExpiringWithin returns OAuth integrations whose token expiry falls
// inside the given window. Used by the background refresh sweep.
func (r *Repository) ListExpiringWithin(ctx context.Context, window time.Duration) ([]Integration, error) {
	cutoff := time.Now().Add(window)
	rows, err := r.pool.Query(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE token_expiry IS NOT NULL
		  AND token_expiry < $1
		  AND status IN ('connected', 'expiring_soon')
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectIntegrations(rows)
}

func collectIntegrations(rows pgx.Rows) ([]Integration, error) {
	var result []Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, i)
	}
	return result, rows.Err()
}

// Create inserts a new integration record.
func (r *Repository) Create(ctx context.Context, i Integration) (Integration, error) {
	return scanIntegration(r.pool.QueryRow(ctx, `
		INSERT INTO integrations
			(name, provider, status, page_id, account_id,
			 access_token, refresh_token, token_expiry, token_class,
			 api_key_hash, api_key_prefix)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+integrationColumns+`
	`, i.Name, i.Provider, i.Status, i.PageID, i.AccountID,
		i.AccessToken, i.RefreshToken, i.TokenExpiry, i.TokenClass,
		i.APIKeyHash, i.APIKeyPrefix))
}

// UpdateCredentials stores a new token set and status. Called only by the
// token lifecycle manager and the reconnect flow.
func (r *Repository) UpdateCredentials(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiry *time.Time, status Status) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE integrations
		SET access_token = $2, refresh_token = $3, token_expiry = $4,
		    status = $5, updated_at = now()
		WHERE id = $1
	`, id, accessToken, refreshToken, expiry, status)
	return err
}

// UpdateStatus moves an integration to a new lifecycle status without
// touching its credentials.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE integrations
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	return err
}

// ReconcileLeadsCount recomputes leads_count from the leads table. Normal
// increments happen transactionally with the lead insert (DB trigger); this
// is the explicit reconciliation operation.
func (r *Repository) ReconcileLeadsCount(ctx context.Context) error {
	// A LEFT JOIN keeps integrations with no remaining leads in the update
	// set so their counts fall back to zero.
	_, err := r.pool.Exec(ctx, `
		UPDATE integrations i
		SET leads_count = COALESCE(c.n, 0), updated_at = now()
		FROM integrations i2
		LEFT JOIN (
			SELECT integration_id, count(*) AS n
			FROM leads
			WHERE integration_id IS NOT NULL
			GROUP BY integration_id
		) c ON c.integration_id = i2.id
		WHERE i2.id = i.id AND i.leads_count <> COALESCE(c.n, 0)
	`)
	return err
}
