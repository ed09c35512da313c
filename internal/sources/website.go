package sources

import (
	"context"
	"encoding/json"

	"leadcrm_backend/internal/leads/domain"
)

// websiteSubmission is what the site SDK posts: form field key/value pairs
// plus the page context the form was embedded on.
type websiteSubmission struct {
	Fields     map[string]string `json:"fields"`
	PageURL    string            `json:"pageUrl,omitempty"`
	FormName   string            `json:"formName,omitempty"`
	CampaignID string            `json:"campaignId,omitempty"`
}

// WebsiteAdapter handles website/WordPress form posts. Field names come from
// arbitrary form builders, so extraction is alias-based best effort.
type WebsiteAdapter struct{}

// NewWebsiteAdapter creates the website form adapter.
func NewWebsiteAdapter() *WebsiteAdapter { return &WebsiteAdapter{} }

// Source implements Adapter.
func (a *WebsiteAdapter) Source() domain.Source { return domain.SourceWebsite }

// Normalize implements Adapter.
func (a *WebsiteAdapter) Normalize(_ context.Context, payload []byte, sc SourceContext) (domain.IncomingLead, error) {
	var sub websiteSubmission
	if err := json.Unmarshal(payload, &sub); err != nil {
		return domain.IncomingLead{}, Malformed("invalid form submission body", err)
	}
	if len(sub.Fields) == 0 {
		// Tolerate SDKs that post the bare field map without the wrapper.
		var flat map[string]string
		if err := json.Unmarshal(payload, &flat); err != nil || len(flat) == 0 {
			return domain.IncomingLead{}, Malformed("form submission has no fields", nil)
		}
		sub.Fields = flat
	}

	lead := extractFields(sub.Fields, domain.SourceWebsite)
	lead.IntegrationID = sc.IntegrationID
	if sub.CampaignID != "" {
		lead.CampaignID = sub.CampaignID
	} else if sc.CampaignID != "" && lead.CampaignID == "" {
		lead.CampaignID = sc.CampaignID
	}
	if sub.FormName != "" && lead.FormID == "" {
		lead.FormID = sub.FormName
	}
	if sub.PageURL != "" {
		if lead.CustomFields == nil {
			lead.CustomFields = make(map[string]string)
		}
		lead.CustomFields["page_url"] = sub.PageURL
	}
	return lead, nil
}

var _ Adapter = (*WebsiteAdapter)(nil)
