package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// The error taxonomy is a closed set. Adapters translate raw upstream
// responses into exactly one of these kinds; nothing provider-specific
// leaks past this package.

// ValidationError rejects malformed caller input before any cache,
// guard, or upstream work happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AuthError means the upstream rejected our credential. The operator
// needs to re-run the one-time authorization flow.
type AuthError struct {
	Service string
	Reason  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authorization failed (%s): re-authorization required", e.Service, e.Reason)
}

// RateLimitError means the upstream itself is throttling us. Distinct
// from this system's own actuation guard.
type RateLimitError struct {
	Service    string
	RetryAfter time.Duration // zero when the upstream gave no hint
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: upstream rate limited, retry after %s", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s: upstream rate limited", e.Service)
}

// TransientError covers network failures, timeouts, and 5xx responses.
// Eligible for caller-level retry; never retried internally.
type TransientError struct {
	Service string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient upstream failure: %v", e.Service, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// InternalError marks defects in our own cache or merge logic.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal: %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// IsValidation reports whether err is caller-input rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuth reports whether err means re-authorization is needed.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsRateLimit reports whether err is upstream throttling.
func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// classifyStatus maps a non-2xx upstream response to the taxonomy.
func classifyStatus(service string, status int, body []byte) error {
	detail := string(body)
	if len(detail) > 200 {
		detail = detail[:200]
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Service: service, Reason: fmt.Sprintf("status %d", status)}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Service: service}
	case status >= 500:
		return &TransientError{Service: service, Err: fmt.Errorf("status %d: %s", status, detail)}
	default:
		// Unexpected 4xx on a request we built ourselves is our defect,
		// not the caller's.
		return &InternalError{Op: service + " request", Err: fmt.Errorf("status %d: %s", status, detail)}
	}
}

// classifyStatusRetry is classifyStatus with Retry-After header support.
func classifyStatusRetry(service string, resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		var after time.Duration
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				after = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{Service: service, RetryAfter: after}
	}
	return classifyStatus(service, resp.StatusCode, body)
}

// transportErr wraps a failed round trip (DNS, timeout, reset) as transient.
func transportErr(service string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransientError{Service: service, Err: err}
}
