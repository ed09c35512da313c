package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadcrm_backend/internal/integrations"
	"leadcrm_backend/platform/config"
)

// MetaRefresher exchanges a Meta access token for a fresh long-lived token
// using the fb_exchange_token grant.
type MetaRefresher struct {
	graphURL  string
	appID     string
	appSecret string
	http      *http.Client
}

// NewMetaRefresher creates a refresher against the configured Graph API base.
func NewMetaRefresher(cfg config.MetaConfig, upstream config.UpstreamConfig) *MetaRefresher {
	timeout := upstream.GetUpstreamTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MetaRefresher{
		graphURL:  strings.TrimRight(cfg.GetMetaGraphURL(), "/"),
		appID:     cfg.GetMetaAppID(),
		appSecret: cfg.GetMetaAppSecret(),
		http:      &http.Client{Timeout: timeout},
	}
}

type metaTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Refresh implements Refresher.
func (r *MetaRefresher) Refresh(ctx context.Context, integration integrations.Integration) (Credentials, error) {
	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", r.appID)
	query.Set("client_secret", r.appSecret)
	query.Set("fb_exchange_token", integration.AccessToken)

	endpoint := fmt.Sprintf("%s/oauth/access_token?%s", r.graphURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Credentials{}, err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("meta token exchange: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Credentials{}, fmt.Errorf("meta token exchange returned %d", resp.StatusCode)
	}

	var payload metaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Credentials{}, fmt.Errorf("meta token exchange decode: %w", err)
	}
	if payload.AccessToken == "" {
		return Credentials{}, fmt.Errorf("meta token exchange returned empty token")
	}

	// Long-lived tokens without an explicit expires_in default to 60 days.
	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int64((60 * 24 * time.Hour).Seconds())
	}

	return Credentials{
		AccessToken: payload.AccessToken,
		Expiry:      time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}
