package sources

import (
	"regexp"
	"strings"

	"leadcrm_backend/internal/leads/domain"
)

// extractFields performs best-effort field extraction from a flat string map.
// It uses label matching to identify common fields across any form layout;
// keys it cannot place land in CustomFields untouched.
func extractFields(data map[string]string, source domain.Source) domain.IncomingLead {
	lead := domain.IncomingLead{Source: source}

	// Name parts are collected first and combined after the loop, so the
	// result does not depend on map iteration order. A full-name field always
	// wins over first/last parts.
	var fullName, firstName, lastName string

	for key, value := range data {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(key))

		switch {
		case matchesAny(k, fullNamePatterns):
			fullName = value
		case matchesAny(k, firstNamePatterns):
			firstName = value
		case matchesAny(k, lastNamePatterns):
			lastName = value
		case matchesAny(k, emailPatterns):
			if emailRegex.MatchString(value) {
				lead.Email = value
			}
		case matchesAny(k, phonePatterns):
			lead.Phone = value
		case matchesAny(k, countryPatterns):
			lead.Country = value
		case matchesAny(k, cityPatterns):
			lead.City = value
		case matchesAny(k, languagePatterns):
			lead.Language = value
		case matchesAny(k, statusPatterns):
			lead.Status = value
		case k == "utm_source":
			lead.UTM.Source = value
		case k == "utm_medium":
			lead.UTM.Medium = value
		case k == "utm_campaign":
			lead.UTM.Campaign = value
		case k == "utm_content":
			lead.UTM.Content = value
		case k == "utm_term":
			lead.UTM.Term = value
		case matchesAny(k, campaignPatterns):
			lead.CampaignID = value
		case matchesAny(k, adIDPatterns):
			lead.AdID = value
		case matchesAny(k, adsetPatterns):
			lead.AdsetID = value
		case matchesAny(k, formIDPatterns):
			lead.FormID = value
		case matchesAny(k, externalIDPatterns):
			lead.ExternalLeadID = value
		default:
			if lead.CustomFields == nil {
				lead.CustomFields = make(map[string]string)
			}
			lead.CustomFields[key] = value
		}
	}

	switch {
	case fullName != "":
		lead.FullName = fullName
	case firstName != "" && lastName != "":
		lead.FullName = firstName + " " + lastName
	case firstName != "":
		lead.FullName = firstName
	case lastName != "":
		lead.FullName = lastName
	}

	return lead
}

// Field label patterns across the form builders and ad platforms we ingest from.
var (
	fullNamePatterns   = []string{"full_name", "fullname", "name", "your_name", "contact_name"}
	firstNamePatterns  = []string{"first_name", "firstname", "given_name", "fname"}
	lastNamePatterns   = []string{"last_name", "lastname", "family_name", "surname", "lname"}
	emailPatterns      = []string{"email", "e-mail", "e_mail", "email_address", "mail"}
	phonePatterns      = []string{"phone", "tel", "telephone", "phone_number", "phonenumber", "mobile", "whatsapp"}
	countryPatterns    = []string{"country", "country_code", "nation"}
	cityPatterns       = []string{"city", "town", "location"}
	languagePatterns   = []string{"language", "lang", "locale"}
	statusPatterns     = []string{"status", "lead_status", "stage"}
	campaignPatterns   = []string{"campaign_id", "campaignid", "campaign"}
	adIDPatterns       = []string{"ad_id", "adid", "creative_id"}
	adsetPatterns      = []string{"adset_id", "adsetid", "adgroup_id", "ad_group_id"}
	formIDPatterns     = []string{"form_id", "formid"}
	externalIDPatterns = []string{"lead_id", "leadgen_id", "external_id", "external_lead_id"}
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var labelNormalizer = strings.NewReplacer("-", "", "_", "", " ", "")

func matchesAny(label string, patterns []string) bool {
	// Normalize: strip spaces, dashes, underscores for fuzzy matching
	normalized := labelNormalizer.Replace(label)
	for _, p := range patterns {
		if normalized == labelNormalizer.Replace(p) {
			return true
		}
	}
	return false
}
