// Package repository persists leads. Identity matching happens in SQL so the
// hot ingest path stays a single round trip per lookup.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrDuplicateRace means a concurrent insert for the same lead won the
	// unique index first. Callers re-run the match and refresh the winner.
	ErrDuplicateRace = errors.New("duplicate lead insert lost the race")
)

const leadColumns = `id, full_name, phone, phone_normalized, email, email_normalized,
	country, city, language, status, substatus, source, integration_id,
	owner_user_id, owner_team_id, campaign_id, utm, ad_source_id, ad_id,
	adset_id, form_id, external_lead_id, custom_fields,
	created_at, updated_at, last_seen_at`

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead      domain.Lead
		status    string
		source    string
		utmJSON   []byte
		extraJSON []byte
	)
	err := row.Scan(
		&lead.ID, &lead.FullName, &lead.Phone, &lead.PhoneNormalized,
		&lead.Email, &lead.EmailNormalized, &lead.Country, &lead.City,
		&lead.Language, &status, &lead.Substatus, &source,
		&lead.IntegrationID, &lead.OwnerUserID, &lead.OwnerTeamID,
		&lead.CampaignID, &utmJSON, &lead.AdSourceID, &lead.AdID,
		&lead.AdsetID, &lead.FormID, &lead.ExternalLeadID, &extraJSON,
		&lead.CreatedAt, &lead.UpdatedAt, &lead.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrNotFound
		}
		return domain.Lead{}, err
	}
	lead.Status = domain.Status(status)
	lead.Source = domain.Source(source)
	if len(utmJSON) > 0 {
		if err := json.Unmarshal(utmJSON, &lead.UTM); err != nil {
			return domain.Lead{}, fmt.Errorf("decode utm: %w", err)
		}
	}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &lead.CustomFields); err != nil {
			return domain.Lead{}, fmt.Errorf("decode custom fields: %w", err)
		}
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// FindByExternalID looks up a lead by the platform-assigned identifier.
// External ids are only unique within their source channel.
func (r *Repository) FindByExternalID(ctx context.Context, source domain.Source, externalID string) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE source = $1 AND external_lead_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, string(source), externalID)
	return scanLead(row)
}

// FindIdentityMatch returns the most recent lead matching the normalized
// identity. Phone matching is substring tolerant in both directions so a
// number stored without its country prefix still matches the prefixed form.
// A country value on both sides must agree; a blank on either side does not
// disqualify the match.
func (r *Repository) FindIdentityMatch(ctx context.Context, phoneNormalized, emailNormalized, country string) (domain.Lead, error) {
	if phoneNormalized == "" && emailNormalized == "" {
		return domain.Lead{}, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, identityMatchQuery, phoneNormalized, emailNormalized, country)
	return scanLead(row)
}

// identityMatchQuery backs both FindIdentityMatch and the in-transaction
// recheck during Insert. $1 phone_normalized, $2 email_normalized, $3 country.
const identityMatchQuery = `
	SELECT ` + leadColumns + `
	FROM leads
	WHERE (
		($1 <> '' AND phone_normalized <> '' AND
			(phone_normalized LIKE '%' || $1 || '%' OR $1 LIKE '%' || phone_normalized || '%'))
		OR ($2 <> '' AND email_normalized = $2)
	)
	AND ($3 = '' OR country = '' OR country = $3)
	ORDER BY created_at DESC
	LIMIT 1
`

// identityLockKeys returns the advisory-lock keys guarding an identity.
// The order is fixed (phone before email) so concurrent inserts always
// acquire in the same sequence and cannot deadlock.
func identityLockKeys(phoneNormalized, emailNormalized string) []string {
	keys := make([]string, 0, 2)
	if phoneNormalized != "" {
		keys = append(keys, "lead:phone:"+phoneNormalized)
	}
	if emailNormalized != "" {
		keys = append(keys, "lead:email:"+emailNormalized)
	}
	return keys
}

// Insert persists a new lead draft and returns the stored record.
//
// Identity races are arbitrated here: the transaction takes advisory locks
// on the normalized phone/email, then rechecks for a matching lead. A
// concurrent ingest of the same identity serializes on the lock, so the
// loser sees the winner's committed row and gets ErrDuplicateRace instead
// of a second insert. External-id collisions are caught by the unique index.
func (r *Repository) Insert(ctx context.Context, draft domain.Lead) (domain.Lead, error) {
	utmJSON, err := json.Marshal(draft.UTM)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode utm: %w", err)
	}
	extraJSON, err := marshalCustomFields(draft.CustomFields)
	if err != nil {
		return domain.Lead{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback(ctx)

	lockKeys := identityLockKeys(draft.PhoneNormalized, draft.EmailNormalized)
	for _, key := range lockKeys {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return domain.Lead{}, fmt.Errorf("identity lock: %w", err)
		}
	}
	if len(lockKeys) > 0 {
		_, err := scanLead(tx.QueryRow(ctx, identityMatchQuery,
			draft.PhoneNormalized, draft.EmailNormalized, draft.Country))
		if err == nil {
			return domain.Lead{}, ErrDuplicateRace
		}
		if !errors.Is(err, ErrNotFound) {
			return domain.Lead{}, err
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO leads (
			full_name, phone, phone_normalized, email, email_normalized,
			country, city, language, status, substatus, source, integration_id,
			owner_user_id, owner_team_id, campaign_id, utm, ad_source_id, ad_id,
			adset_id, form_id, external_lead_id, custom_fields
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING `+leadColumns,
		draft.FullName, draft.Phone, draft.PhoneNormalized, draft.Email, draft.EmailNormalized,
		draft.Country, draft.City, draft.Language, string(draft.Status), draft.Substatus,
		string(draft.Source), draft.IntegrationID, draft.OwnerUserID, draft.OwnerTeamID,
		draft.CampaignID, utmJSON, draft.AdSourceID, draft.AdID,
		draft.AdsetID, draft.FormID, draft.ExternalLeadID, extraJSON,
	)
	lead, err := scanLead(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Lead{}, ErrDuplicateRace
		}
		return domain.Lead{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// Refresh overwrites the merged lead record and resets the duplicate window:
// created_at and last_seen_at both move to now.
func (r *Repository) Refresh(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	utmJSON, err := json.Marshal(lead.UTM)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode utm: %w", err)
	}
	extraJSON, err := marshalCustomFields(lead.CustomFields)
	if err != nil {
		return domain.Lead{}, err
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE leads SET
			full_name = $2, phone = $3, phone_normalized = $4,
			email = $5, email_normalized = $6, country = $7, city = $8,
			language = $9, status = $10, campaign_id = $11, utm = $12,
			ad_source_id = $13, ad_id = $14, adset_id = $15, form_id = $16,
			external_lead_id = $17, custom_fields = $18,
			created_at = now(), updated_at = now(), last_seen_at = now()
		WHERE id = $1
		RETURNING `+leadColumns,
		lead.ID, lead.FullName, lead.Phone, lead.PhoneNormalized,
		lead.Email, lead.EmailNormalized, lead.Country, lead.City,
		lead.Language, string(lead.Status), lead.CampaignID, utmJSON,
		lead.AdSourceID, lead.AdID, lead.AdsetID, lead.FormID,
		lead.ExternalLeadID, extraJSON,
	)
	return scanLead(row)
}

// AssignOwner sets routing ownership without touching the dedup window.
func (r *Repository) AssignOwner(ctx context.Context, id uuid.UUID, ownerUserID, ownerTeamID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET owner_user_id = $2, owner_team_id = $3, updated_at = now()
		WHERE id = $1
	`, id, ownerUserID, ownerTeamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// leadChildTables are removed before the lead row itself. The order only
// matters for readability; none of them reference each other.
var leadChildTables = []string{
	"lead_files",
	"lead_notes",
	"lead_meetings",
	"lead_price_offers",
	"lead_messages",
	"lead_activities",
}

// Delete removes a lead and everything hanging off it in one transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, table := range leadChildTables {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE lead_id = $1`, table), id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

// CountSince supports the reconciliation sweep: leads attributed to one
// integration created after the given time.
func (r *Repository) CountSince(ctx context.Context, integrationID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM leads WHERE integration_id = $1 AND created_at >= $2
	`, integrationID, since).Scan(&count)
	return count, err
}

func marshalCustomFields(fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode custom fields: %w", err)
	}
	return encoded, nil
}
