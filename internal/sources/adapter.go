// Package sources holds the source adapters. Each adapter converts one
// channel's payload layout into the canonical IncomingLead shape; adapters
// never deduplicate and never persist.
package sources

import (
	"context"
	"fmt"

	"leadcrm_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// ErrorKind classifies adapter failures so the ingestion coordinator can
// decide retry-vs-terminal without string matching.
type ErrorKind string

const (
	// KindMalformedPayload is a bad or unexpected payload shape. Terminal.
	KindMalformedPayload ErrorKind = "malformed_payload"
	// KindUpstreamUnavailable is a transient network or platform API failure.
	// Retryable by the caller's redelivery mechanism.
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	// KindIntegrationNotConfigured means the inbound channel is missing
	// credentials or routing. Terminal; requires operator action.
	KindIntegrationNotConfigured ErrorKind = "integration_not_configured"
)

// AdapterError is the typed failure result of Normalize.
type AdapterError struct {
	Kind      ErrorKind
	Retryable bool
	Message   string
	Err       error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Malformed builds a terminal malformed-payload error.
func Malformed(message string, err error) *AdapterError {
	return &AdapterError{Kind: KindMalformedPayload, Message: message, Err: err}
}

// Upstream builds a retryable upstream-unavailable error.
func Upstream(message string, err error) *AdapterError {
	return &AdapterError{Kind: KindUpstreamUnavailable, Retryable: true, Message: message, Err: err}
}

// NotConfigured builds a terminal missing-integration error.
func NotConfigured(message string) *AdapterError {
	return &AdapterError{Kind: KindIntegrationNotConfigured, Message: message}
}

// SourceContext carries the routing information the transport layer resolved
// before handing the payload to an adapter.
type SourceContext struct {
	// IntegrationID is the authenticated inbound channel, when the transport
	// already resolved one (API-key authenticated webhooks).
	IntegrationID *uuid.UUID
	// CampaignID is an optional campaign hint from the transport layer.
	CampaignID string
}

// Adapter converts a source-specific payload into the canonical IncomingLead.
type Adapter interface {
	// Source returns the channel tag this adapter produces leads for.
	Source() domain.Source
	// Normalize extracts and flattens the payload. Failures are returned as
	// *AdapterError values.
	Normalize(ctx context.Context, payload []byte, sc SourceContext) (domain.IncomingLead, error)
}
