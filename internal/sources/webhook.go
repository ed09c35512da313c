package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"leadcrm_backend/internal/leads/domain"
)

// WebhookAdapter handles the generic webhook channel: a flat JSON object of
// lead fields. Keys it cannot place are preserved in custom fields.
type WebhookAdapter struct{}

// NewWebhookAdapter creates the generic webhook adapter.
func NewWebhookAdapter() *WebhookAdapter { return &WebhookAdapter{} }

// Source implements Adapter.
func (a *WebhookAdapter) Source() domain.Source { return domain.SourceWebhook }

// Normalize implements Adapter.
func (a *WebhookAdapter) Normalize(_ context.Context, payload []byte, sc SourceContext) (domain.IncomingLead, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.IncomingLead{}, Malformed("invalid webhook body", err)
	}
	if len(raw) == 0 {
		return domain.IncomingLead{}, Malformed("webhook body is empty", nil)
	}

	lead := extractFields(stringifyValues(raw), domain.SourceWebhook)
	lead.IntegrationID = sc.IntegrationID
	if sc.CampaignID != "" && lead.CampaignID == "" {
		lead.CampaignID = sc.CampaignID
	}
	return lead, nil
}

// stringifyValues flattens a decoded JSON object into strings. Nested
// objects and arrays are kept as compact JSON so nothing is lost.
func stringifyValues(raw map[string]any) map[string]string {
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			fields[key] = v
		case float64:
			fields[key] = trimFloat(v)
		case bool:
			fields[key] = fmt.Sprintf("%t", v)
		default:
			if encoded, err := json.Marshal(v); err == nil {
				fields[key] = string(encoded)
			}
		}
	}
	return fields
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

var _ Adapter = (*WebhookAdapter)(nil)
