package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStravaRefresh(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.Form.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q, want old-refresh", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"expires_at":    time.Now().Add(6 * time.Hour).Unix(),
		})
	}))
	defer ts.Close()

	oauth := NewStravaOAuth("cid", "secret")
	oauth.TokenURL = ts.URL

	rec, err := oauth.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rec.AccessToken != "new-access" || rec.RefreshToken != "new-refresh" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.ExpiresAt.After(time.Now()) {
		t.Errorf("expires_at = %v, want future", rec.ExpiresAt)
	}
}

func TestStravaRefreshRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad Request","errors":[{"code":"invalid"}]}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	oauth := NewStravaOAuth("cid", "secret")
	oauth.TokenURL = ts.URL

	_, err := oauth.Refresh(context.Background(), "revoked")
	if err == nil {
		t.Fatal("expected error for rejected refresh")
	}
	var rejected *TokenRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v (%T), want TokenRejectedError", err, err)
	}
	if rejected.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rejected.Status)
	}
}

func TestStravaExchange(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", got)
		}
		if got := r.Form.Get("code"); got != "one-time" {
			t.Errorf("code = %q, want one-time", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "first-access",
			"refresh_token": "first-refresh",
			"expires_at":    time.Now().Add(6 * time.Hour).Unix(),
		})
	}))
	defer ts.Close()

	oauth := NewStravaOAuth("cid", "secret")
	oauth.TokenURL = ts.URL

	rec, err := oauth.Exchange(context.Background(), "one-time")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if rec.AccessToken != "first-access" {
		t.Errorf("access token = %q, want first-access", rec.AccessToken)
	}
}
