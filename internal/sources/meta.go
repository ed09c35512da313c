package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadcrm_backend/internal/integrations"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
)

// IntegrationDirectory resolves inbound channels by routing key.
// Satisfied by integrations.Repository.
type IntegrationDirectory interface {
	GetByPageID(ctx context.Context, provider integrations.Provider, pageID string) (integrations.Integration, error)
	ListByProvider(ctx context.Context, provider integrations.Provider) ([]integrations.Integration, error)
}

// TokenSource provides usable access tokens. Satisfied by token.Manager.
type TokenSource interface {
	EnsureFresh(ctx context.Context, integrationID uuid.UUID) (string, error)
}

// metaWebhookPayload is the lightweight change notification Meta delivers.
// It carries only the lead identifier and, usually, the page routing key.
type metaWebhookPayload struct {
	Entry []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				LeadgenID   string `json:"leadgen_id"`
				PageID      string `json:"page_id"`
				FormID      string `json:"form_id"`
				AdID        string `json:"ad_id"`
				AdgroupID   string `json:"adgroup_id"`
				CreatedTime int64  `json:"created_time"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// metaLead is the full lead object fetched from the Graph API.
type metaLead struct {
	ID        string `json:"id"`
	AdID      string `json:"ad_id"`
	AdsetID   string `json:"adset_id"`
	CampaignID string `json:"campaign_id"`
	FormID    string `json:"form_id"`
	FieldData []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"field_data"`
}

// MetaAdapter handles Meta lead ads. The webhook is id-only, so every
// normalization performs a fetch-by-id round trip against the Graph API with
// the integration's current access token.
type MetaAdapter struct {
	graphURL  string
	http      *http.Client
	directory IntegrationDirectory
	tokens    TokenSource
	log       *logger.Logger
}

// NewMetaAdapter creates the Meta source adapter.
func NewMetaAdapter(cfg config.MetaConfig, upstream config.UpstreamConfig, directory IntegrationDirectory, tokens TokenSource, log *logger.Logger) *MetaAdapter {
	timeout := upstream.GetUpstreamTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MetaAdapter{
		graphURL:  strings.TrimRight(cfg.GetMetaGraphURL(), "/"),
		http:      &http.Client{Timeout: timeout},
		directory: directory,
		tokens:    tokens,
		log:       log,
	}
}

// Source implements Adapter.
func (a *MetaAdapter) Source() domain.Source { return domain.SourceMeta }

// Normalize implements Adapter. The payload is the raw webhook body.
func (a *MetaAdapter) Normalize(ctx context.Context, payload []byte, sc SourceContext) (domain.IncomingLead, error) {
	var hook metaWebhookPayload
	if err := json.Unmarshal(payload, &hook); err != nil {
		return domain.IncomingLead{}, Malformed("invalid meta webhook body", err)
	}

	leadgenID, pageID := firstLeadgenChange(hook)
	if leadgenID == "" {
		return domain.IncomingLead{}, Malformed("meta webhook carries no leadgen change", nil)
	}

	if pageID != "" {
		integration, err := a.directory.GetByPageID(ctx, integrations.ProviderMeta, pageID)
		if err != nil {
			return domain.IncomingLead{}, NotConfigured(fmt.Sprintf("no meta integration for page %s", pageID))
		}
		return a.fetchAndFlatten(ctx, leadgenID, integration)
	}

	// The webhook lacked its routing key. Best effort: try each connected
	// meta integration's token to fetch the lead and discover where it
	// belongs, before giving up.
	return a.fetchWithoutRoutingKey(ctx, leadgenID)
}

func firstLeadgenChange(hook metaWebhookPayload) (leadgenID, pageID string) {
	for _, entry := range hook.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "leadgen" {
				continue
			}
			if change.Value.LeadgenID == "" {
				continue
			}
			pageID = change.Value.PageID
			if pageID == "" {
				pageID = entry.ID
			}
			return change.Value.LeadgenID, pageID
		}
	}
	return "", ""
}

func (a *MetaAdapter) fetchWithoutRoutingKey(ctx context.Context, leadgenID string) (domain.IncomingLead, error) {
	candidates, err := a.directory.ListByProvider(ctx, integrations.ProviderMeta)
	if err != nil {
		return domain.IncomingLead{}, Upstream("listing meta integrations", err)
	}
	if len(candidates) == 0 {
		return domain.IncomingLead{}, NotConfigured("no meta integrations connected")
	}

	var lastErr error
	for _, integration := range candidates {
		lead, err := a.fetchAndFlatten(ctx, leadgenID, integration)
		if err == nil {
			a.log.Info("meta lead routed via secondary lookup",
				"leadgen_id", leadgenID, "integration_id", integration.ID)
			return lead, nil
		}
		lastErr = err
	}

	a.log.UpstreamError("meta", "secondary_lookup", lastErr)
	return domain.IncomingLead{}, NotConfigured(
		fmt.Sprintf("meta webhook for lead %s has no routing key and no integration could fetch it", leadgenID))
}

func (a *MetaAdapter) fetchAndFlatten(ctx context.Context, leadgenID string, integration integrations.Integration) (domain.IncomingLead, error) {
	accessToken, err := a.tokens.EnsureFresh(ctx, integration.ID)
	if err != nil {
		return domain.IncomingLead{}, NotConfigured(
			fmt.Sprintf("meta integration %s has no usable credentials", integration.ID))
	}

	fetched, err := a.fetchLead(ctx, leadgenID, accessToken)
	if err != nil {
		return domain.IncomingLead{}, err
	}

	fields := make(map[string]string, len(fetched.FieldData))
	for _, fd := range fetched.FieldData {
		if len(fd.Values) == 0 {
			continue
		}
		fields[fd.Name] = fd.Values[0]
	}

	lead := extractFields(fields, domain.SourceMeta)
	lead.IntegrationID = &integration.ID
	lead.ExternalLeadID = fetched.ID
	lead.AdSourceID = integration.PageID
	if fetched.AdID != "" {
		lead.AdID = fetched.AdID
	}
	if fetched.AdsetID != "" {
		lead.AdsetID = fetched.AdsetID
	}
	if fetched.FormID != "" {
		lead.FormID = fetched.FormID
	}
	if fetched.CampaignID != "" {
		lead.CampaignID = fetched.CampaignID
	}
	return lead, nil
}

func (a *MetaAdapter) fetchLead(ctx context.Context, leadgenID, accessToken string) (metaLead, error) {
	query := url.Values{}
	query.Set("access_token", accessToken)
	query.Set("fields", "id,ad_id,adset_id,campaign_id,form_id,field_data")

	endpoint := fmt.Sprintf("%s/%s?%s", a.graphURL, url.PathEscape(leadgenID), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return metaLead{}, Upstream("building meta lead request", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return metaLead{}, Upstream("fetching meta lead", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return metaLead{}, NotConfigured("meta rejected the integration credentials")
	case resp.StatusCode != http.StatusOK:
		return metaLead{}, Upstream(fmt.Sprintf("meta lead fetch returned %d", resp.StatusCode), nil)
	}

	var fetched metaLead
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		return metaLead{}, Upstream("decoding meta lead", err)
	}
	if fetched.ID == "" {
		return metaLead{}, Malformed("meta lead response missing id", nil)
	}
	return fetched, nil
}

var _ Adapter = (*MetaAdapter)(nil)
