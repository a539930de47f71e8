// Package auth owns the OAuth access/refresh token pair for an
// upstream and keeps it valid without breaking in-flight requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrReauthorizationRequired is returned once a refresh has been
// rejected upstream. The stored refresh token is no longer usable and
// the one-time authorization flow has to be run again.
var ErrReauthorizationRequired = errors.New("token refresh rejected: re-authorization required")

// ErrNoToken is returned when no token has ever been stored.
var ErrNoToken = errors.New("no token on record: run authorization first")

// TokenRejectedError reports a grant the token endpoint answered with a
// definitive non-2xx status. Transport failures and timeouts are not
// rejections: the stored refresh token may still be good.
type TokenRejectedError struct {
	Status int
	Body   string
}

func (e *TokenRejectedError) Error() string {
	return fmt.Sprintf("token endpoint status %d: %s", e.Status, e.Body)
}

// DefaultRefreshBuffer is how long before expiry a token is treated
// as near-expired and refreshed on the next use.
const DefaultRefreshBuffer = 5 * time.Minute

// refreshTimeout bounds one upstream refresh attempt.
const refreshTimeout = 30 * time.Second

// RefreshFunc exchanges a refresh token for a new TokenRecord at the
// upstream token endpoint.
type RefreshFunc func(ctx context.Context, refreshToken string) (*TokenRecord, error)

// refreshCall is one in-flight refresh shared by every caller that
// arrives while it runs.
type refreshCall struct {
	done chan struct{}
	rec  *TokenRecord
	err  error
}

// Manager serializes refreshes of a single upstream credential. At
// most one refresh is in flight at a time; concurrent callers wait on
// it and all receive the same rotated token. This is a correctness
// requirement: providers that rotate the refresh token on every use
// will strand the client if two refreshes race.
type Manager struct {
	store   Store
	refresh RefreshFunc
	buffer  time.Duration

	mu       sync.Mutex
	rec      *TokenRecord
	inflight *refreshCall
	failed   bool

	now func() time.Time
}

// NewManager loads any persisted token from store. A missing token
// file is not an error; AccessToken reports ErrNoToken until one is set.
func NewManager(store Store, refresh RefreshFunc) (*Manager, error) {
	m := &Manager{
		store:   store,
		refresh: refresh,
		buffer:  DefaultRefreshBuffer,
		now:     time.Now,
	}

	rec, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	m.rec = rec
	return m, nil
}

// SetToken installs a freshly authorized token, persists it, and
// clears any failed state.
func (m *Manager) SetToken(rec *TokenRecord) error {
	if err := m.store.Save(rec); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	m.mu.Lock()
	m.rec = rec
	m.failed = false
	m.mu.Unlock()
	return nil
}

// AccessToken returns a currently-valid access token, refreshing it
// first if it is within the expiry buffer. The rotated record is
// persisted before any caller sees the new token, so a crash between
// refresh and persistence costs at worst one re-authorization.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()

	if m.failed {
		m.mu.Unlock()
		return "", ErrReauthorizationRequired
	}
	if m.rec == nil {
		m.mu.Unlock()
		return "", ErrNoToken
	}
	if m.rec.ExpiresAt.Sub(m.now()) > m.buffer {
		token := m.rec.AccessToken
		m.mu.Unlock()
		return token, nil
	}

	// Near expiry. Join the in-flight refresh if there is one,
	// otherwise become it.
	if m.inflight != nil {
		call := m.inflight
		m.mu.Unlock()
		return awaitRefresh(ctx, call)
	}

	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call
	refreshToken := m.rec.RefreshToken
	m.mu.Unlock()

	// The refresh is shared by every waiter, so it runs on a detached
	// context: the leader's request being cancelled must not abort it.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	rec, err := m.refresh(rctx, refreshToken)
	cancel()
	if err == nil {
		// Persist before publishing to any caller.
		if perr := m.store.Save(rec); perr != nil {
			err = fmt.Errorf("persist refreshed token: %w", perr)
			rec = nil
		}
	}

	var rejected *TokenRejectedError
	m.mu.Lock()
	m.inflight = nil
	switch {
	case err == nil:
		m.rec = rec
		call.rec = rec
	case errors.As(err, &rejected):
		// The refresh token is burned upstream; only the one-time
		// authorization flow recovers from here.
		m.failed = true
		call.err = ErrReauthorizationRequired
		log.Printf("auth: token refresh rejected: %v", err)
	default:
		// Transport trouble or a persistence hiccup. The stored
		// refresh token is still usable, so the next caller retries.
		call.err = fmt.Errorf("token refresh: %w", err)
		log.Printf("auth: token refresh failed: %v", err)
	}
	m.mu.Unlock()
	close(call.done)

	return awaitRefresh(ctx, call)
}

// Expiry reports the current token expiry, if a token exists.
func (m *Manager) Expiry() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return time.Time{}, false
	}
	return m.rec.ExpiresAt, true
}

func awaitRefresh(ctx context.Context, call *refreshCall) (string, error) {
	select {
	case <-call.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if call.err != nil {
		return "", call.err
	}
	return call.rec.AccessToken, nil
}
