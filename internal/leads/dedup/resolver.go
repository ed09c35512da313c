// Package dedup decides whether an incoming lead is a new prospect or a
// re-submission of an existing one, and how the two records merge.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
)

// Action is the outcome of a dedup resolution.
type Action string

const (
	// ActionInsert means no existing lead matched; persist a new record.
	ActionInsert Action = "insert"
	// ActionRefresh means an existing lead matched; merge and refresh it.
	ActionRefresh Action = "refresh"
)

// Decision carries the resolved action and, for a refresh, the matched lead.
type Decision struct {
	Action   Action
	Existing domain.Lead
}

// Finder is the read side the resolver needs. Satisfied by repository.Repository.
type Finder interface {
	FindByExternalID(ctx context.Context, source domain.Source, externalID string) (domain.Lead, error)
	FindIdentityMatch(ctx context.Context, phoneNormalized, emailNormalized, country string) (domain.Lead, error)
}

// Resolver applies the matching rules in precedence order: external id first,
// then the phone/email identity, most recent match winning.
type Resolver struct {
	finder Finder
}

func NewResolver(finder Finder) *Resolver {
	return &Resolver{finder: finder}
}

// Resolve decides insert-vs-refresh for one incoming lead.
func (r *Resolver) Resolve(ctx context.Context, in domain.IncomingLead) (Decision, error) {
	if in.ExternalLeadID != "" {
		existing, err := r.finder.FindByExternalID(ctx, in.Source, in.ExternalLeadID)
		switch {
		case err == nil:
			return Decision{Action: ActionRefresh, Existing: existing}, nil
		case !errors.Is(err, repository.ErrNotFound):
			return Decision{}, fmt.Errorf("external id lookup: %w", err)
		}
	}

	// Without a phone or email nothing can ever match; the lead is new by
	// definition, even if it looks identical to an existing record.
	if !in.HasIdentity() {
		return Decision{Action: ActionInsert}, nil
	}

	key := domain.IdentityOf(in)
	existing, err := r.finder.FindIdentityMatch(ctx, key.Phone, key.Email, key.Country)
	switch {
	case err == nil:
		return Decision{Action: ActionRefresh, Existing: existing}, nil
	case errors.Is(err, repository.ErrNotFound):
		return Decision{Action: ActionInsert}, nil
	default:
		return Decision{}, fmt.Errorf("identity lookup: %w", err)
	}
}

// Merge folds an incoming lead into the matched record. Non-empty incoming
// values overwrite; blanks keep what is already stored. Custom fields are
// unioned with the incoming side winning on key collisions. The status moves
// through AdvanceStatus so a refresh never regresses progress already made.
func Merge(existing domain.Lead, in domain.IncomingLead) domain.Lead {
	merged := existing

	if in.FullName != "" {
		merged.FullName = in.FullName
	}
	if in.Phone != "" {
		merged.Phone = in.Phone
		merged.PhoneNormalized = domain.NormalizePhone(in.Phone)
	}
	if in.Email != "" {
		merged.Email = in.Email
		merged.EmailNormalized = domain.NormalizeEmail(in.Email)
	}
	if in.Country != "" {
		merged.Country = domain.NormalizeCountry(in.Country)
	}
	if in.City != "" {
		merged.City = in.City
	}
	if in.Language != "" {
		merged.Language = in.Language
	}
	if in.CampaignID != "" {
		merged.CampaignID = in.CampaignID
	}
	if in.AdSourceID != "" {
		merged.AdSourceID = in.AdSourceID
	}
	if in.AdID != "" {
		merged.AdID = in.AdID
	}
	if in.AdsetID != "" {
		merged.AdsetID = in.AdsetID
	}
	if in.FormID != "" {
		merged.FormID = in.FormID
	}
	if in.ExternalLeadID != "" {
		merged.ExternalLeadID = in.ExternalLeadID
	}
	if in.UTM.Source != "" {
		merged.UTM.Source = in.UTM.Source
	}
	if in.UTM.Medium != "" {
		merged.UTM.Medium = in.UTM.Medium
	}
	if in.UTM.Campaign != "" {
		merged.UTM.Campaign = in.UTM.Campaign
	}
	if in.UTM.Content != "" {
		merged.UTM.Content = in.UTM.Content
	}
	if in.UTM.Term != "" {
		merged.UTM.Term = in.UTM.Term
	}
	if len(in.CustomFields) > 0 {
		if merged.CustomFields == nil {
			merged.CustomFields = make(map[string]string, len(in.CustomFields))
		} else {
			copied := make(map[string]string, len(merged.CustomFields)+len(in.CustomFields))
			for k, v := range merged.CustomFields {
				copied[k] = v
			}
			merged.CustomFields = copied
		}
		for k, v := range in.CustomFields {
			merged.CustomFields[k] = v
		}
	}

	merged.Status = domain.AdvanceStatus(existing.Status)
	return merged
}
