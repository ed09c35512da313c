package sources

import (
	"context"
	"errors"
	"testing"
)

func TestWebsiteAdapterWrappedSubmission(t *testing.T) {
	body := []byte(`{
		"fields": {
			"fname": "Noor",
			"surname": "Haddad",
			"email_address": "noor@example.net",
			"mobile": "055-111-2222",
			"town": "Dubai"
		},
		"pageUrl": "https://example.com/pricing",
		"formName": "pricing-contact",
		"campaignId": "summer-24"
	}`)

	lead, err := NewWebsiteAdapter().Normalize(context.Background(), body, SourceContext{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if lead.FullName != "Noor Haddad" {
		t.Errorf("FullName = %q", lead.FullName)
	}
	if lead.Email != "noor@example.net" {
		t.Errorf("Email = %q", lead.Email)
	}
	if lead.Phone != "055-111-2222" {
		t.Errorf("Phone = %q", lead.Phone)
	}
	if lead.City != "Dubai" {
		t.Errorf("City = %q", lead.City)
	}
	if lead.CampaignID != "summer-24" {
		t.Errorf("CampaignID = %q", lead.CampaignID)
	}
	if lead.FormID != "pricing-contact" {
		t.Errorf("FormID = %q", lead.FormID)
	}
	if lead.CustomFields["page_url"] != "https://example.com/pricing" {
		t.Errorf("page_url lost: %v", lead.CustomFields)
	}
}

// Some site plugins post the raw field map without the wrapper envelope.
func TestWebsiteAdapterBareFieldMap(t *testing.T) {
	lead, err := NewWebsiteAdapter().Normalize(context.Background(),
		[]byte(`{"name":"Lena","phone":"0612345678"}`), SourceContext{})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if lead.FullName != "Lena" || lead.Phone != "0612345678" {
		t.Errorf("lead = %+v", lead)
	}
}

func TestWebsiteAdapterEmptySubmission(t *testing.T) {
	for _, body := range []string{`{}`, `{"fields":{}}`, `bad`} {
		_, err := NewWebsiteAdapter().Normalize(context.Background(), []byte(body), SourceContext{})
		var adapterErr *AdapterError
		if !errors.As(err, &adapterErr) || adapterErr.Kind != KindMalformedPayload {
			t.Errorf("body %q: err = %v, want malformed payload", body, err)
		}
	}
}
