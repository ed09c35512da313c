package dedup

import (
	"context"
	"errors"
	"testing"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"

	"github.com/google/uuid"
)

type fakeFinder struct {
	byExternal map[string]domain.Lead // keyed source|externalID
	byIdentity []domain.Lead
	failWith   error
}

func (f *fakeFinder) FindByExternalID(_ context.Context, source domain.Source, externalID string) (domain.Lead, error) {
	if f.failWith != nil {
		return domain.Lead{}, f.failWith
	}
	if lead, ok := f.byExternal[string(source)+"|"+externalID]; ok {
		return lead, nil
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (f *fakeFinder) FindIdentityMatch(_ context.Context, phone, email, country string) (domain.Lead, error) {
	if f.failWith != nil {
		return domain.Lead{}, f.failWith
	}
	var best *domain.Lead
	for i := range f.byIdentity {
		candidate := f.byIdentity[i]
		phoneHit := phone != "" && candidate.PhoneNormalized != "" && domain.PhonesMatch(phone, candidate.PhoneNormalized)
		emailHit := email != "" && candidate.EmailNormalized == email
		if !phoneHit && !emailHit {
			continue
		}
		if country != "" && candidate.Country != "" && candidate.Country != country {
			continue
		}
		if best == nil || candidate.CreatedAt.After(best.CreatedAt) {
			best = &f.byIdentity[i]
		}
	}
	if best == nil {
		return domain.Lead{}, repository.ErrNotFound
	}
	return *best, nil
}

func TestResolveExternalIDWinsOverIdentity(t *testing.T) {
	byExternal := domain.Lead{ID: uuid.New(), ExternalLeadID: "x-1", Source: domain.SourceMeta}
	byPhone := domain.Lead{ID: uuid.New(), PhoneNormalized: "+15551234567"}
	resolver := NewResolver(&fakeFinder{
		byExternal: map[string]domain.Lead{"meta|x-1": byExternal},
		byIdentity: []domain.Lead{byPhone},
	})

	decision, err := resolver.Resolve(context.Background(), domain.IncomingLead{
		Source:         domain.SourceMeta,
		ExternalLeadID: "x-1",
		Phone:          "+1 555 123 4567",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Action != ActionRefresh {
		t.Fatalf("Action = %q", decision.Action)
	}
	if decision.Existing.ID != byExternal.ID {
		t.Errorf("matched %s, want the external-id match %s", decision.Existing.ID, byExternal.ID)
	}
}

func TestResolveIdentityMatchRefreshes(t *testing.T) {
	existing := domain.Lead{ID: uuid.New(), PhoneNormalized: "+15551234567", Country: "United States"}
	resolver := NewResolver(&fakeFinder{byIdentity: []domain.Lead{existing}})

	tests := []struct {
		name string
		in   domain.IncomingLead
		want Action
	}{
		{
			name: "same phone different formatting",
			in:   domain.IncomingLead{Phone: "+1 (555) 123-4567"},
			want: ActionRefresh,
		},
		{
			name: "phone without country prefix",
			in:   domain.IncomingLead{Phone: "555-123-4567"},
			want: ActionRefresh,
		},
		{
			name: "country mismatch disqualifies",
			in:   domain.IncomingLead{Phone: "+15551234567", Country: "Germany"},
			want: ActionInsert,
		},
		{
			name: "country alias still matches",
			in:   domain.IncomingLead{Phone: "+15551234567", Country: "usa"},
			want: ActionRefresh,
		},
		{
			name: "no identity always inserts",
			in:   domain.IncomingLead{FullName: "Same Name"},
			want: ActionInsert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := resolver.Resolve(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if decision.Action != tt.want {
				t.Errorf("Action = %q, want %q", decision.Action, tt.want)
			}
		})
	}
}

func TestResolveEmailExactMatch(t *testing.T) {
	existing := domain.Lead{ID: uuid.New(), EmailNormalized: "jane@example.com"}
	resolver := NewResolver(&fakeFinder{byIdentity: []domain.Lead{existing}})

	decision, err := resolver.Resolve(context.Background(), domain.IncomingLead{Email: "  JANE@Example.com "})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Action != ActionRefresh {
		t.Errorf("Action = %q, want refresh for case-insensitive email", decision.Action)
	}

	decision, err = resolver.Resolve(context.Background(), domain.IncomingLead{Email: "jane+tag@example.com"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Action != ActionInsert {
		t.Errorf("Action = %q, email matching must be exact, not fuzzy", decision.Action)
	}
}

func TestResolvePropagatesLookupErrors(t *testing.T) {
	boom := errors.New("connection refused")
	resolver := NewResolver(&fakeFinder{failWith: boom})

	_, err := resolver.Resolve(context.Background(), domain.IncomingLead{Email: "a@b.co"})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped lookup error", err)
	}
}

func TestMergeFillsAndAdvances(t *testing.T) {
	existing := domain.Lead{
		ID:           uuid.New(),
		FullName:     "Jane Doe",
		Phone:        "555-123-4567",
		Status:       domain.StatusNew,
		City:         "Austin",
		CustomFields: map[string]string{"budget": "10000", "kept": "yes"},
	}
	in := domain.IncomingLead{
		Phone:        "+1 555 123 4567",
		Email:        "jane@example.com",
		Country:      "usa",
		CampaignID:   "camp-2",
		UTM:          domain.UTM{Source: "google"},
		CustomFields: map[string]string{"budget": "12000"},
	}

	merged := Merge(existing, in)

	if merged.FullName != "Jane Doe" {
		t.Errorf("blank incoming name must keep existing, got %q", merged.FullName)
	}
	if merged.Phone != "+1 555 123 4567" || merged.PhoneNormalized != "+15551234567" {
		t.Errorf("phone = %q / %q", merged.Phone, merged.PhoneNormalized)
	}
	if merged.Email != "jane@example.com" {
		t.Errorf("Email = %q", merged.Email)
	}
	if merged.Country != "United States" {
		t.Errorf("Country = %q, want alias-normalized", merged.Country)
	}
	if merged.City != "Austin" {
		t.Errorf("City = %q", merged.City)
	}
	if merged.Status != domain.StatusInProgress {
		t.Errorf("Status = %q, want new advanced to in_progress", merged.Status)
	}
	if merged.CustomFields["budget"] != "12000" || merged.CustomFields["kept"] != "yes" {
		t.Errorf("CustomFields = %v, want union with incoming winning", merged.CustomFields)
	}
	if existing.CustomFields["budget"] != "10000" {
		t.Error("Merge must not mutate the existing record's map")
	}
}

func TestMergeNeverRegressesStatus(t *testing.T) {
	for _, status := range []domain.Status{
		domain.StatusInProgress, domain.StatusFollowUp, domain.StatusWon, domain.StatusLost,
	} {
		merged := Merge(domain.Lead{Status: status}, domain.IncomingLead{Status: "new"})
		if merged.Status != status {
			t.Errorf("status %q regressed to %q", status, merged.Status)
		}
	}
}
