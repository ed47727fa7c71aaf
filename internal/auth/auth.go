// Package auth manages the OAuth credential lifecycle: interactive
// login, access-token refresh, and logout.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"juggler/internal/clock"
	"juggler/internal/credstore"
	"juggler/internal/logging"
)

// RefreshBuffer is how long before its expiry a cached access token is
// already treated as stale, absorbing clock skew against the provider.
const RefreshBuffer = 5 * time.Minute

// DefaultCallbackTimeout bounds how long Login waits for the provider
// redirect.
const DefaultCallbackTimeout = 5 * time.Minute

// Errors surfaced by the credential lifecycle. None of them are
// retryable; the fix is always to run login again.
var (
	ErrNoCredential          = errors.New("no stored credential (run: juggler login)")
	ErrInvalidGrant          = errors.New("refresh credential rejected (run: juggler login)")
	ErrCallbackStateMismatch = errors.New("oauth callback state mismatch")
	ErrCallbackTimeout       = errors.New("oauth callback timed out")
	ErrUserDenied            = errors.New("authorization denied by user")
)

// Manager acquires and refreshes bearer access tokens from the persisted
// refresh credential. The access-token cache lives in memory only and is
// rebuilt each process run.
type Manager struct {
	oauth  *oauth2.Config
	creds  credstore.Store
	clock  clock.Clock
	logger *slog.Logger

	// CallbackTimeout bounds how long Login waits for the provider
	// redirect. Tests shorten it.
	CallbackTimeout time.Duration

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewManager creates a Manager. All collaborators are injected; nothing
// is read from process-global state.
func NewManager(oauth *oauth2.Config, creds credstore.Store, clk clock.Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		oauth:           oauth,
		creds:           creds,
		clock:           clk,
		logger:          logger,
		CallbackTimeout: DefaultCallbackTimeout,
	}
}

// AccessToken returns a bearer access token, refreshing it through the
// stored credential when the cached one is within RefreshBuffer of its
// expiry. Fails with ErrNoCredential when nothing is stored and
// ErrInvalidGrant when the provider rejects the refresh credential.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.token != "" && !m.expiry.IsZero() && now.Before(m.expiry.Add(-RefreshBuffer)) {
		return m.token, nil
	}

	secret, ok, err := m.creds.Get()
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if !ok {
		return "", ErrNoCredential
	}

	tok, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: secret}).Token()
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) && retrieve.ErrorCode == "invalid_grant" {
			return "", ErrInvalidGrant
		}
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	m.token = tok.AccessToken
	m.expiry = tok.Expiry
	m.logger.Debug("access token refreshed",
		logging.Operation("auth.refresh"),
		slog.String("token", logging.SanitizeToken(tok.AccessToken)),
		slog.Time("expiry", tok.Expiry))
	return m.token, nil
}

// TokenSource adapts the manager into an oauth2.TokenSource so HTTP
// clients pull tokens through the same cache and refresh path.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerSource{ctx: ctx, m: m}
}

type managerSource struct {
	ctx context.Context
	m   *Manager
}

func (s *managerSource) Token() (*oauth2.Token, error) {
	access, err := s.m.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer", Expiry: s.m.expiry}, nil
}

// Logout deletes the stored refresh credential and drops the cached
// access token. Logging out when no credential is stored succeeds.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.token = ""
	m.expiry = time.Time{}
	m.mu.Unlock()

	if err := m.creds.Delete(); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	m.logger.Debug("credential deleted", logging.Operation("auth.logout"))
	return nil
}

// Diagnostics describes the stored credential without exposing it.
type Diagnostics struct {
	CredentialPresent bool
	CredentialLen     int
}

// Diagnose reports whether a refresh credential is stored and how long
// it is. The secret itself is never returned.
func Diagnose(creds credstore.Store) (Diagnostics, error) {
	secret, ok, err := creds.Get()
	if err != nil {
		return Diagnostics{}, fmt.Errorf("read credential: %w", err)
	}
	return Diagnostics{CredentialPresent: ok, CredentialLen: len(secret)}, nil
}
