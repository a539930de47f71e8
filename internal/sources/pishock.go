package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const pishockAPI = "https://do.pishock.com/api/apioperate"

// Op is a PiShock operation code.
type Op int

const (
	OpShock   Op = 0
	OpVibrate Op = 1
	OpBeep    Op = 2
)

// ActionClass maps an operation to the guard's action-class name.
func (o Op) ActionClass() string {
	switch o {
	case OpShock:
		return "shock"
	case OpVibrate:
		return "vibrate"
	default:
		return "beep"
	}
}

// ParseOp converts a caller-facing mode string to an Op.
func ParseOp(mode string) (Op, error) {
	switch mode {
	case "shock":
		return OpShock, nil
	case "vibrate":
		return OpVibrate, nil
	case "beep":
		return OpBeep, nil
	default:
		return 0, &ValidationError{Field: "mode", Reason: "must be shock, vibrate, or beep"}
	}
}

// PiShock drives the physical stimulus device. No caching: every call
// is a real-world side effect.
type PiShock struct {
	BaseURL    string
	Username   string
	APIKey     string
	ShareCode  string
	DeviceName string
	HTTPClient *http.Client
}

// NewPiShock creates a PiShock client.
func NewPiShock(username, apiKey, shareCode string) *PiShock {
	return &PiShock{
		BaseURL:    pishockAPI,
		Username:   username,
		APIKey:     apiKey,
		ShareCode:  shareCode,
		DeviceName: "lifestack",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// TriggerInput is a validated actuation request.
type TriggerInput struct {
	Op        Op
	Intensity int // 1-100
	Duration  int // seconds, 1-15
}

// Validate checks the ranges the device accepts. Beeps carry no intensity.
func (in TriggerInput) Validate() error {
	if in.Duration < 1 || in.Duration > 15 {
		return &ValidationError{Field: "duration", Reason: "must be 1-15 seconds"}
	}
	if in.Op != OpBeep && (in.Intensity < 1 || in.Intensity > 100) {
		return &ValidationError{Field: "intensity", Reason: "must be 1-100"}
	}
	return nil
}

// Trigger sends the operation to the device. The API answers 200 with
// a plain-text verdict, so the body has to be inspected as well.
func (p *PiShock) Trigger(ctx context.Context, in TriggerInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	payload := map[string]any{
		"Username": p.Username,
		"Apikey":   p.APIKey,
		"Code":     p.ShareCode,
		"Name":     p.DeviceName,
		"Op":       int(in.Op),
		"Duration": in.Duration,
	}
	if in.Op != OpBeep {
		payload["Intensity"] = in.Intensity
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &InternalError{Op: "marshal pishock request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL, bytes.NewReader(body))
	if err != nil {
		return &InternalError{Op: "pishock request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return transportErr(ServicePiShock, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(ServicePiShock, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatusRetry(ServicePiShock, resp, respBody)
	}

	verdict := strings.TrimSpace(string(respBody))
	if !strings.Contains(verdict, "Succeeded") {
		if strings.Contains(verdict, "not authorized") || strings.Contains(verdict, "Invalid credentials") {
			return &AuthError{Service: ServicePiShock, Reason: verdict}
		}
		return &TransientError{Service: ServicePiShock, Err: fmt.Errorf("device refused: %s", verdict)}
	}
	return nil
}
