package sources

import (
	"context"
	"errors"
	"testing"

	"leadcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

func TestWebhookAdapterExtractsAliasedFields(t *testing.T) {
	integrationID := uuid.New()
	body := []byte(`{
		"Your Name": "Omar Farouk",
		"e-mail": "omar@example.com",
		"Telephone": "+971 50 123 4567",
		"Country": "UAE",
		"utm_source": "newsletter",
		"utm_campaign": "spring",
		"budget": 25000,
		"subscribed": true,
		"notes": null,
		"extras": {"referrer": "partner"}
	}`)

	lead, err := NewWebhookAdapter().Normalize(context.Background(), body, SourceContext{IntegrationID: &integrationID})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if lead.Source != domain.SourceWebhook {
		t.Errorf("Source = %q", lead.Source)
	}
	if lead.FullName != "Omar Farouk" {
		t.Errorf("FullName = %q", lead.FullName)
	}
	if lead.Email != "omar@example.com" {
		t.Errorf("Email = %q", lead.Email)
	}
	if lead.Phone != "+971 50 123 4567" {
		t.Errorf("Phone = %q", lead.Phone)
	}
	if lead.Country != "UAE" {
		t.Errorf("Country = %q", lead.Country)
	}
	if lead.UTM.Source != "newsletter" || lead.UTM.Campaign != "spring" {
		t.Errorf("UTM = %+v", lead.UTM)
	}
	if lead.IntegrationID == nil || *lead.IntegrationID != integrationID {
		t.Errorf("IntegrationID = %v", lead.IntegrationID)
	}
	if lead.CustomFields["budget"] != "25000" {
		t.Errorf("numeric field = %q, want integer formatting", lead.CustomFields["budget"])
	}
	if lead.CustomFields["subscribed"] != "true" {
		t.Errorf("bool field = %q", lead.CustomFields["subscribed"])
	}
	if _, ok := lead.CustomFields["notes"]; ok {
		t.Error("null values must be dropped")
	}
	if lead.CustomFields["extras"] != `{"referrer":"partner"}` {
		t.Errorf("nested object = %q, want compact json", lead.CustomFields["extras"])
	}
}

func TestWebhookAdapterInvalidEmailIsNotPromoted(t *testing.T) {
	lead, err := NewWebhookAdapter().Normalize(context.Background(),
		[]byte(`{"name":"X","email":"not-an-address"}`), SourceContext{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if lead.Email != "" {
		t.Errorf("Email = %q, want empty for invalid address", lead.Email)
	}
}

func TestWebhookAdapterCampaignFromContext(t *testing.T) {
	lead, err := NewWebhookAdapter().Normalize(context.Background(),
		[]byte(`{"name":"X"}`), SourceContext{CampaignID: "camp-7"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if lead.CampaignID != "camp-7" {
		t.Errorf("CampaignID = %q", lead.CampaignID)
	}
}

func TestWebhookAdapterRejectsBadBodies(t *testing.T) {
	for _, body := range []string{"nope", "{}", "[]"} {
		_, err := NewWebhookAdapter().Normalize(context.Background(), []byte(body), SourceContext{})
		var adapterErr *AdapterError
		if !errors.As(err, &adapterErr) || adapterErr.Kind != KindMalformedPayload {
			t.Errorf("body %q: err = %v, want malformed payload", body, err)
		}
	}
}
