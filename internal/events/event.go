// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadcrm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadCreated is published when the ingestion coordinator persists a new lead.
type LeadCreated struct {
	BaseEvent
	LeadID        uuid.UUID  `json:"leadId"`
	IntegrationID *uuid.UUID `json:"integrationId,omitempty"`
	CampaignID    string     `json:"campaignId,omitempty"`
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	Country       string     `json:"country,omitempty"`
	OwnerUserID   *uuid.UUID `json:"ownerUserId,omitempty"`
	OwnerTeamID   *uuid.UUID `json:"ownerTeamId,omitempty"`
	FullName      string     `json:"fullName"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadRefreshed is published when an incoming lead matched an existing record
// and refreshed it in place instead of inserting a duplicate.
type LeadRefreshed struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	Country     string     `json:"country,omitempty"`
	OwnerUserID *uuid.UUID `json:"ownerUserId,omitempty"`
	OwnerTeamID *uuid.UUID `json:"ownerTeamId,omitempty"`
}

func (e LeadRefreshed) EventName() string { return "leads.lead.refreshed" }

// LeadDeleted is published after an explicit operator delete cascaded to the
// lead's child records.
type LeadDeleted struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	Country     string     `json:"country,omitempty"`
	OwnerUserID *uuid.UUID `json:"ownerUserId,omitempty"`
	OwnerTeamID *uuid.UUID `json:"ownerTeamId,omitempty"`
	DeletedByID uuid.UUID  `json:"deletedById"`
}

func (e LeadDeleted) EventName() string { return "leads.lead.deleted" }

// =============================================================================
// Integration Events
// =============================================================================

// IntegrationStatusChanged is published when the token lifecycle manager or a
// reconnect flow moves an integration to a new status.
type IntegrationStatusChanged struct {
	BaseEvent
	IntegrationID uuid.UUID `json:"integrationId"`
	Provider      string    `json:"provider"`
	OldStatus     string    `json:"oldStatus"`
	NewStatus     string    `json:"newStatus"`
}

func (e IntegrationStatusChanged) EventName() string { return "integrations.status.changed" }
