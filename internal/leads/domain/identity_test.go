package domain

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"+1 (555) 123-4567", "+15551234567"},
		{"555-123-4567", "5551234567"},
		{" 555 123 4567 ", "5551234567"},
		{"+31 6 1234 5678", "+31612345678"},
		{"", ""},
		{"EXT-100A", "ext100a"},
	}

	for _, tc := range cases {
		if got := NormalizePhone(tc.raw); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Jane.Doe@Example.COM "); got != "jane.doe@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestNormalizeCountry(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"usa", "United States"},
		{"USA", "United States"},
		{"uk", "United Kingdom"},
		{"uae", "United Arab Emirates"},
		{"Portugal", "Portugal"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeCountry(tc.raw); got != tc.want {
			t.Errorf("NormalizeCountry(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestPhonesMatchSubstringTolerant(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		// Same number with and without country prefix.
		{"+15551234567", "5551234567", true},
		{"5551234567", "+15551234567", true},
		{"+15551234567", "+15551234567", true},
		{"5551234567", "5559876543", false},
		{"", "5551234567", false},
		{"5551234567", "", false},
	}

	for _, tc := range cases {
		if got := PhonesMatch(tc.a, tc.b); got != tc.want {
			t.Errorf("PhonesMatch(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestHasIdentity(t *testing.T) {
	if (IncomingLead{FullName: "Jane"}).HasIdentity() {
		t.Error("lead without phone and email must have no identity")
	}
	if !(IncomingLead{FullName: "Jane", Phone: "555"}).HasIdentity() {
		t.Error("lead with phone must have identity")
	}
	if !(IncomingLead{FullName: "Jane", Email: "a@b.c"}).HasIdentity() {
		t.Error("lead with email must have identity")
	}
	if (IncomingLead{FullName: "Jane", Phone: "  "}).HasIdentity() {
		t.Error("whitespace-only phone is not an identity")
	}
}
