package ticketing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// CredentialConfig holds the OAuth refresh-token settings for the desk API.
type CredentialConfig struct {
	TokenURL     string
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// CredentialCache exchanges a refresh token for access tokens and caches the
// result. Concurrent turns may trigger simultaneous refreshes, so the whole
// get-or-refresh path is held under a lock.
type CredentialCache struct {
	mu    sync.Mutex
	token string
	cfg   CredentialConfig
	hc    *http.Client
}

// NewCredentialCache creates a cache. A nil client uses http.DefaultClient.
func NewCredentialCache(cfg CredentialConfig, hc *http.Client) *CredentialCache {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &CredentialCache{cfg: cfg, hc: hc}
}

// Get returns a cached access token, refreshing it first when forceRefresh is
// set or no token has been fetched yet.
func (c *CredentialCache) Get(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && !forceRefresh {
		return c.token, nil
	}

	if c.cfg.RefreshToken == "" || c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", fmt.Errorf("missing desk API credentials")
	}

	params := url.Values{
		"refresh_token": {c.cfg.RefreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("access token not found in response")
	}

	c.token = tokenResp.AccessToken
	return c.token, nil
}
