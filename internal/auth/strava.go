package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const stravaTokenURL = "https://www.strava.com/oauth/token"

// StravaOAuth talks to the Strava token endpoint. It implements both
// the refresh grant used by the Manager and the one-time code
// exchange used by the authorize command.
type StravaOAuth struct {
	ClientID     string
	ClientSecret string
	TokenURL     string // defaults to the Strava endpoint; overridable for tests
	HTTPClient   *http.Client
}

// NewStravaOAuth creates a StravaOAuth client.
func NewStravaOAuth(clientID, clientSecret string) *StravaOAuth {
	return &StravaOAuth{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     stravaTokenURL,
		HTTPClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Refresh exchanges a refresh token for a new TokenRecord. Strava
// rotates the refresh token, so the returned record replaces both halves.
func (s *StravaOAuth) Refresh(ctx context.Context, refreshToken string) (*TokenRecord, error) {
	return s.tokenRequest(ctx, url.Values{
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}

// Exchange trades a one-time authorization code for the initial TokenRecord.
func (s *StravaOAuth) Exchange(ctx context.Context, code string) (*TokenRecord, error) {
	return s.tokenRequest(ctx, url.Values{
		"client_id":     {s.ClientID},
		"client_secret": {s.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
	})
}

func (s *StravaOAuth) tokenRequest(ctx context.Context, form url.Values) (*TokenRecord, error) {
	endpoint := s.TokenURL
	if endpoint == "" {
		endpoint = stravaTokenURL
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TokenRejectedError{Status: resp.StatusCode, Body: string(body)}
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAt    int64  `json:"expires_at"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if result.AccessToken == "" {
		return nil, fmt.Errorf("strava token endpoint returned no access token")
	}

	return &TokenRecord{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    time.Unix(result.ExpiresAt, 0),
	}, nil
}
