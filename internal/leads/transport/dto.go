// Package transport holds the request and response shapes for the leads API.
package transport

import (
	"leadcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// CreateLeadRequest is the manual-create payload. The same shape is used for
// each item in a sync batch.
type CreateLeadRequest struct {
	FullName     string            `json:"fullName" validate:"required,min=1,max=200"`
	Phone        string            `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	Email        string            `json:"email,omitempty" validate:"omitempty,email"`
	Country      string            `json:"country,omitempty" validate:"omitempty,max=100"`
	City         string            `json:"city,omitempty" validate:"omitempty,max=100"`
	Language     string            `json:"language,omitempty" validate:"omitempty,max=50"`
	Status       string            `json:"status,omitempty" validate:"omitempty,max=50"`
	CampaignID   string            `json:"campaignId,omitempty" validate:"omitempty,max=100"`
	UTMSource    string            `json:"utmSource,omitempty"`
	UTMMedium    string            `json:"utmMedium,omitempty"`
	UTMCampaign  string            `json:"utmCampaign,omitempty"`
	UTMContent   string            `json:"utmContent,omitempty"`
	UTMTerm      string            `json:"utmTerm,omitempty"`
	ExternalID   string            `json:"externalId,omitempty" validate:"omitempty,max=200"`
	CustomFields map[string]string `json:"customFields,omitempty"`
}

// ToIncoming converts the request into the canonical incoming shape.
func (r CreateLeadRequest) ToIncoming(source domain.Source) domain.IncomingLead {
	return domain.IncomingLead{
		FullName:   r.FullName,
		Phone:      r.Phone,
		Email:      r.Email,
		Country:    r.Country,
		City:       r.City,
		Language:   r.Language,
		Source:     source,
		Status:     r.Status,
		CampaignID: r.CampaignID,
		UTM: domain.UTM{
			Source:   r.UTMSource,
			Medium:   r.UTMMedium,
			Campaign: r.UTMCampaign,
			Content:  r.UTMContent,
			Term:     r.UTMTerm,
		},
		ExternalLeadID: r.ExternalID,
		CustomFields:   r.CustomFields,
	}
}

// SyncLeadsRequest carries a batch import from an external CRM. The
// integration id attributes every lead in the batch to the channel that
// produced it.
type SyncLeadsRequest struct {
	IntegrationID string              `json:"integrationId,omitempty" validate:"omitempty,uuid"`
	Leads         []CreateLeadRequest `json:"leads" validate:"required,min=1,max=500,dive"`
}

// ToIncoming converts the batch into the canonical incoming shape, stamping
// the batch's integration id onto every lead.
func (r SyncLeadsRequest) ToIncoming() []domain.IncomingLead {
	var integrationID *uuid.UUID
	if id, err := uuid.Parse(r.IntegrationID); err == nil {
		integrationID = &id
	}

	batch := make([]domain.IncomingLead, 0, len(r.Leads))
	for _, item := range r.Leads {
		in := item.ToIncoming(domain.SourceSync)
		in.IntegrationID = integrationID
		batch = append(batch, in)
	}
	return batch
}
