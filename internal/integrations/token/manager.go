// Package token implements the credential lifecycle for OAuth-connected
// integrations: Disconnected → Connected → ExpiringSoon → Refreshing →
// Connected | Error.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/internal/integrations"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoCredentials means the integration has never been connected.
	ErrNoCredentials = errors.New("integration has no credentials")
	// ErrRefreshFailed means the refresh call failed and the previous token
	// is already past its expiry.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Credentials is the result of a successful provider refresh call.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Refresher performs the platform-specific token refresh call.
type Refresher interface {
	Refresh(ctx context.Context, integration integrations.Integration) (Credentials, error)
}

// Store is the persistence surface the manager needs. Satisfied by
// integrations.Repository.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (integrations.Integration, error)
	UpdateCredentials(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiry *time.Time, status integrations.Status) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status integrations.Status) error
}

// Manager owns credential mutation for all integrations. Refreshes are
// single-flighted per integration id: concurrent callers observing an
// expiring token await the one in-flight refresh.
type Manager struct {
	store       Store
	refreshers  map[integrations.Provider]Refresher
	longWindow  time.Duration
	shortWindow time.Duration
	group       singleflight.Group
	bus         events.Bus
	log         *logger.Logger
}

// NewManager creates a token lifecycle manager.
func NewManager(store Store, cfg config.TokenLifecycleConfig, bus events.Bus, log *logger.Logger) *Manager {
	return &Manager{
		store:       store,
		refreshers:  make(map[integrations.Provider]Refresher),
		longWindow:  cfg.GetLongLivedTokenWindow(),
		shortWindow: cfg.GetShortLivedTokenWindow(),
		bus:         bus,
		log:         log,
	}
}

// RegisterRefresher wires the platform-specific refresh call for a provider.
func (m *Manager) RegisterRefresher(provider integrations.Provider, r Refresher) {
	m.refreshers[provider] = r
}

// window returns the refresh safety window for a token class.
func (m *Manager) window(class integrations.TokenClass) time.Duration {
	if class == integrations.TokenClassShortLived {
		return m.shortWindow
	}
	return m.longWindow
}

// EnsureFresh returns a usable access token for the integration, refreshing
// it first when the remaining lifetime is inside the safety window. A failed
// refresh never clears the previous token: while it remains unexpired it is
// returned so in-flight requests keep working, and the integration is moved
// to the error status for a human to reconnect.
func (m *Manager) EnsureFresh(ctx context.Context, id uuid.UUID) (string, error) {
	integration, err := m.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if integration.AccessToken == "" {
		return "", ErrNoCredentials
	}
	if integration.TokenValidFor(m.window(integration.TokenClass)) {
		return integration.AccessToken, nil
	}

	m.transition(ctx, integration, integrations.StatusExpiringSoon)

	result, err, _ := m.group.Do(id.String(), func() (interface{}, error) {
		return m.refresh(ctx, integration)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (m *Manager) refresh(ctx context.Context, integration integrations.Integration) (string, error) {
	refresher, ok := m.refreshers[integration.Provider]
	if !ok {
		// No refresh call exists for this provider; the stored token is all
		// there is.
		if !integration.TokenExpired() {
			return integration.AccessToken, nil
		}
		return "", fmt.Errorf("%w: no refresher for provider %s", ErrRefreshFailed, integration.Provider)
	}

	m.transition(ctx, integration, integrations.StatusRefreshing)

	creds, err := refresher.Refresh(ctx, integration)
	if err != nil {
		m.log.UpstreamError(string(integration.Provider), "token_refresh", err)
		// Keep the previous token in place; only the status changes.
		m.transition(ctx, integration, integrations.StatusError)
		if !integration.TokenExpired() {
			return integration.AccessToken, nil
		}
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	refreshToken := creds.RefreshToken
	if refreshToken == "" {
		refreshToken = integration.RefreshToken
	}
	expiry := creds.Expiry
	if err := m.store.UpdateCredentials(ctx, integration.ID, creds.AccessToken, refreshToken, &expiry, integrations.StatusConnected); err != nil {
		m.log.DatabaseError("update_credentials", err)
		return creds.AccessToken, nil
	}
	m.publishStatusChange(ctx, integration, integrations.StatusConnected)

	return creds.AccessToken, nil
}

// transition persists a status change and publishes the status event.
// Failures to persist are logged and do not interrupt the refresh.
func (m *Manager) transition(ctx context.Context, integration integrations.Integration, status integrations.Status) {
	if integration.Status == status {
		return
	}
	if err := m.store.UpdateStatus(ctx, integration.ID, status); err != nil {
		m.log.DatabaseError("update_integration_status", err)
		return
	}
	m.publishStatusChange(ctx, integration, status)
}

func (m *Manager) publishStatusChange(ctx context.Context, integration integrations.Integration, status integrations.Status) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(ctx, events.IntegrationStatusChanged{
		BaseEvent:     events.NewBaseEvent(),
		IntegrationID: integration.ID,
		Provider:      string(integration.Provider),
		OldStatus:     string(integration.Status),
		NewStatus:     string(status),
	})
}
