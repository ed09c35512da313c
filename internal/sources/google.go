package sources

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"leadcrm_backend/internal/leads/domain"
)

// googleLeadPayload is a Google Ads Lead Form webhook body. Form answers
// arrive as column-id arrays rather than named fields.
type googleLeadPayload struct {
	LeadID         string `json:"lead_id"`
	CampaignID     int64  `json:"campaign_id"`
	FormID         int64  `json:"form_id"`
	AdgroupID      int64  `json:"adgroup_id"`
	CreativeID     int64  `json:"creative_id"`
	GCLID          string `json:"gclid"`
	IsTest         bool   `json:"is_test"`
	APIVersion     string `json:"api_version"`
	UserColumnData []struct {
		ColumnID    string `json:"column_id"`
		StringValue string `json:"string_value"`
		ColumnName  string `json:"column_name"`
	} `json:"user_column_data"`
}

// GoogleAdapter flattens Google Lead Form column-id arrays into the canonical
// lead shape. The payload is self-contained; no platform round trip needed.
type GoogleAdapter struct{}

// NewGoogleAdapter creates the Google source adapter.
func NewGoogleAdapter() *GoogleAdapter { return &GoogleAdapter{} }

// Source implements Adapter.
func (a *GoogleAdapter) Source() domain.Source { return domain.SourceGoogle }

// Normalize implements Adapter.
func (a *GoogleAdapter) Normalize(_ context.Context, payload []byte, sc SourceContext) (domain.IncomingLead, error) {
	var hook googleLeadPayload
	if err := json.Unmarshal(payload, &hook); err != nil {
		return domain.IncomingLead{}, Malformed("invalid google lead body", err)
	}
	if hook.LeadID == "" {
		return domain.IncomingLead{}, Malformed("google lead missing lead_id", nil)
	}

	fields := make(map[string]string, len(hook.UserColumnData))
	for _, col := range hook.UserColumnData {
		if col.StringValue == "" {
			continue
		}
		key := googleColumnKey(col.ColumnID, col.ColumnName)
		if key == "" {
			continue
		}
		fields[key] = col.StringValue
	}

	lead := extractFields(fields, domain.SourceGoogle)
	lead.IntegrationID = sc.IntegrationID
	lead.ExternalLeadID = hook.LeadID
	if hook.CampaignID != 0 {
		lead.CampaignID = strconv.FormatInt(hook.CampaignID, 10)
	}
	if sc.CampaignID != "" {
		lead.CampaignID = sc.CampaignID
	}
	if hook.FormID != 0 {
		lead.FormID = strconv.FormatInt(hook.FormID, 10)
	}
	if hook.AdgroupID != 0 {
		lead.AdsetID = strconv.FormatInt(hook.AdgroupID, 10)
	}
	if hook.CreativeID != 0 {
		lead.AdID = strconv.FormatInt(hook.CreativeID, 10)
	}
	if hook.GCLID != "" {
		if lead.CustomFields == nil {
			lead.CustomFields = make(map[string]string)
		}
		lead.CustomFields["gclid"] = hook.GCLID
	}
	return lead, nil
}

// googleColumnKey maps Google's well-known column ids to canonical field
// labels, falling back to the human-readable column name.
func googleColumnKey(columnID, columnName string) string {
	switch strings.ToUpper(strings.TrimSpace(columnID)) {
	case "FULL_NAME":
		return "full_name"
	case "FIRST_NAME":
		return "first_name"
	case "LAST_NAME":
		return "last_name"
	case "EMAIL":
		return "email"
	case "PHONE_NUMBER":
		return "phone"
	case "CITY":
		return "city"
	case "COUNTRY":
		return "country"
	case "POSTAL_CODE":
		return "postal_code"
	case "COMPANY_NAME":
		return "company_name"
	}
	if columnName != "" {
		return columnName
	}
	return columnID
}

var _ Adapter = (*GoogleAdapter)(nil)
