// Package integrations provides the inbound-channel bounded context: the
// Integration record, its repository, and the admin surface for connecting
// and reconnecting channels. Token refresh lives in the token subpackage.
package integrations

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies the kind of inbound channel.
type Provider string

const (
	ProviderMeta    Provider = "meta"
	ProviderGoogle  Provider = "google"
	ProviderWebhook Provider = "webhook"
	ProviderWebsite Provider = "website"
)

// Status is the lifecycle state of an integration's credentials.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnected    Status = "connected"
	StatusExpiringSoon Status = "expiring_soon"
	StatusRefreshing   Status = "refreshing"
	StatusError        Status = "error"
	StatusInactive     Status = "inactive"
)

// TokenClass distinguishes refresh safety windows.
type TokenClass string

const (
	// TokenClassLongLived covers platform user/page tokens that live for weeks.
	TokenClassLongLived TokenClass = "long_lived"
	// TokenClassShortLived covers business-API tokens that live for minutes or hours.
	TokenClassShortLived TokenClass = "short_lived"
)

// Integration represents one configured inbound channel. Every field is an
// explicit column; there is no catch-all extra blob.
type Integration struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Provider     Provider   `json:"provider"`
	Status       Status     `json:"status"`
	PageID       string     `json:"pageId,omitempty"`    // routing key for platform webhooks
	AccountID    string     `json:"accountId,omitempty"` // ad account, when known
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"tokenExpiry,omitempty"`
	TokenClass   TokenClass `json:"tokenClass,omitempty"`
	APIKeyHash   string     `json:"-"`                  // inbound webhook/website key, sha256
	APIKeyPrefix string     `json:"apiKeyPrefix,omitempty"`
	LeadsCount   int64      `json:"leadsCount"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TokenValidFor reports whether the access token is still valid for at least
// the given window. Integrations without an expiry never report expiring.
func (i Integration) TokenValidFor(window time.Duration) bool {
	if i.AccessToken == "" {
		return false
	}
	if i.TokenExpiry == nil {
		return true
	}
	return time.Until(*i.TokenExpiry) > window
}

// TokenExpired reports whether the access token is past its expiry.
func (i Integration) TokenExpired() bool {
	return i.TokenExpiry != nil && time.Now().After(*i.TokenExpiry)
}
