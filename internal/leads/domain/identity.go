package domain

import "strings"

// IdentityKey is the derived tuple the deduplication resolver compares on.
// It is computed, never stored as its own entity.
type IdentityKey struct {
	Phone   string
	Email   string
	Country string
}

// IdentityOf derives the identity key from an incoming lead.
func IdentityOf(in IncomingLead) IdentityKey {
	return IdentityKey{
		Phone:   NormalizePhone(in.Phone),
		Email:   NormalizeEmail(in.Email),
		Country: NormalizeCountry(in.Country),
	}
}

var phoneStripper = strings.NewReplacer(
	" ", "",
	"\t", "",
	"-", "",
	"(", "",
	")", "",
)

// NormalizePhone strips whitespace, hyphens and parentheses and case-folds
// any alphabetic content. Country codes are deliberately not canonicalized;
// matching is substring-tolerant instead.
func NormalizePhone(raw string) string {
	return strings.ToLower(phoneStripper.Replace(strings.TrimSpace(raw)))
}

// NormalizeEmail lower-cases and trims the address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// countryAliases maps common short forms to canonical country names.
// Unknown values pass through unchanged.
var countryAliases = map[string]string{
	"usa":     "United States",
	"us":      "United States",
	"uk":      "United Kingdom",
	"uae":     "United Arab Emirates",
	"ksa":     "Saudi Arabia",
	"nl":      "Netherlands",
	"holland": "Netherlands",
	"de":      "Germany",
	"fr":      "France",
	"es":      "Spain",
}

// NormalizeCountry maps known aliases through a small static table.
func NormalizeCountry(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := countryAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// PhonesMatch reports whether two normalized phone numbers identify the same
// line. Matching is substring-tolerant in both directions so that numbers
// with and without a country prefix still match.
func PhonesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
