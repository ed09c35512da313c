// Package domain holds the canonical lead model and the identity rules used
// by the deduplication resolver. It has no persistence or transport concerns.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the inbound channel a lead arrived through.
type Source string

const (
	SourceMeta    Source = "meta"
	SourceGoogle  Source = "google"
	SourceWebhook Source = "webhook"
	SourceWebsite Source = "website"
	SourceManual  Source = "manual"
	SourceSync    Source = "sync"
)

// KnownSources lists every valid source tag in a stable order.
var KnownSources = []Source{
	SourceMeta, SourceGoogle, SourceWebhook, SourceWebsite, SourceManual, SourceSync,
}

// UTM carries the five standard attribution fields.
type UTM struct {
	Source   string `json:"utmSource,omitempty"`
	Medium   string `json:"utmMedium,omitempty"`
	Campaign string `json:"utmCampaign,omitempty"`
	Content  string `json:"utmContent,omitempty"`
	Term     string `json:"utmTerm,omitempty"`
}

// IncomingLead is the transient, adapter-normalized representation of a
// prospective lead prior to dedup and persistence. FullName is the only hard
// requirement; dedup is only meaningful when phone or email is present.
type IncomingLead struct {
	FullName       string            `json:"fullName"`
	Phone          string            `json:"phone,omitempty"`
	Email          string            `json:"email,omitempty"`
	Country        string            `json:"country,omitempty"`
	City           string            `json:"city,omitempty"`
	Language       string            `json:"language,omitempty"`
	Source         Source            `json:"source"`
	Status         string            `json:"status,omitempty"`
	CampaignID     string            `json:"campaignId,omitempty"`
	IntegrationID  *uuid.UUID        `json:"integrationId,omitempty"`
	UTM            UTM               `json:"utm"`
	AdSourceID     string            `json:"adSourceId,omitempty"`
	AdID           string            `json:"adId,omitempty"`
	AdsetID        string            `json:"adsetId,omitempty"`
	FormID         string            `json:"formId,omitempty"`
	ExternalLeadID string            `json:"externalLeadId,omitempty"`
	CustomFields   map[string]string `json:"customFields,omitempty"`
}

// HasIdentity reports whether the lead carries at least one identity field.
// Leads without phone and email can never match an existing record.
func (in IncomingLead) HasIdentity() bool {
	return NormalizePhone(in.Phone) != "" || NormalizeEmail(in.Email) != ""
}

// Lead is the canonical persisted record.
type Lead struct {
	ID              uuid.UUID         `json:"id"`
	FullName        string            `json:"fullName"`
	Phone           string            `json:"phone,omitempty"`
	PhoneNormalized string            `json:"-"`
	Email           string            `json:"email,omitempty"`
	EmailNormalized string            `json:"-"`
	Country         string            `json:"country,omitempty"`
	City            string            `json:"city,omitempty"`
	Language        string            `json:"language,omitempty"`
	Status          Status            `json:"status"`
	Substatus       string            `json:"substatus,omitempty"`
	Source          Source            `json:"source"`
	IntegrationID   *uuid.UUID        `json:"integrationId,omitempty"`
	OwnerUserID     *uuid.UUID        `json:"ownerUserId,omitempty"`
	OwnerTeamID     *uuid.UUID        `json:"ownerTeamId,omitempty"`
	CampaignID      string            `json:"campaignId,omitempty"`
	UTM             UTM               `json:"utm"`
	AdSourceID      string            `json:"adSourceId,omitempty"`
	AdID            string            `json:"adId,omitempty"`
	AdsetID         string            `json:"adsetId,omitempty"`
	FormID          string            `json:"formId,omitempty"`
	ExternalLeadID  string            `json:"externalLeadId,omitempty"`
	CustomFields    map[string]string `json:"customFields,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	// LastSeenAt records the most recent identity match. CreatedAt is still
	// reset on refresh to keep the externally observable duplicate-window
	// behavior; LastSeenAt exists so the two meanings stay separable.
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// NewLeadDraft builds a Lead draft from a normalized incoming lead. The draft
// has no ID or timestamps; the repository assigns those on insert.
func NewLeadDraft(in IncomingLead) Lead {
	return Lead{
		FullName:        in.FullName,
		Phone:           in.Phone,
		PhoneNormalized: NormalizePhone(in.Phone),
		Email:           in.Email,
		EmailNormalized: NormalizeEmail(in.Email),
		Country:         NormalizeCountry(in.Country),
		City:            in.City,
		Language:        in.Language,
		Status:          MapToValidStatus(in.Status),
		Source:          in.Source,
		IntegrationID:   in.IntegrationID,
		CampaignID:      in.CampaignID,
		UTM:             in.UTM,
		AdSourceID:      in.AdSourceID,
		AdID:            in.AdID,
		AdsetID:         in.AdsetID,
		FormID:          in.FormID,
		ExternalLeadID:  in.ExternalLeadID,
		CustomFields:    in.CustomFields,
	}
}
