package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"

	"juggler/internal/logging"
)

const (
	exchangeTimeout = 30 * time.Second

	successHTML = "<html><body><h1>Authorization successful</h1><p>You may close this window and return to juggler.</p></body></html>"
	deniedHTML  = "<html><body><h1>Authorization failed</h1><p>You may close this window.</p></body></html>"
)

// Login runs the authorization-code-with-PKCE flow. It prints the
// consent URL to prompt, listens on port for the provider redirect,
// validates the anti-forgery state, exchanges the code for a refresh
// credential, and persists it. A redirect with a mismatched state is
// rejected with HTTP 400 while the listener keeps serving, so a forged
// callback cannot abort a legitimate in-flight login. On any failure no
// credential is persisted.
func (m *Manager) Login(ctx context.Context, port int, prompt io.Writer) error {
	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return fmt.Errorf("generate state: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return fmt.Errorf("bind callback port %d: %w", port, err)
	}
	defer listener.Close()
	boundPort := listener.Addr().(*net.TCPAddr).Port

	flow := *m.oauth
	flow.RedirectURL = fmt.Sprintf("http://localhost:%d/callback", boundPort)

	// prompt=consent forces Google to re-issue a refresh token even for
	// a previously authorized client.
	authURL := flow.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)
	fmt.Fprintln(prompt, "Open this URL in your browser:")
	fmt.Fprintln(prompt, authURL)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	var mismatches atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			mismatches.Add(1)
			m.logger.Warn("rejected oauth callback with mismatched state",
				logging.Operation("auth.login"))
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if errCode := q.Get("error"); errCode != "" {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, deniedHTML)
			res := fmt.Errorf("authorization failed: %s", errCode)
			if errCode == "access_denied" {
				res = ErrUserDenied
			}
			select {
			case errCh <- res:
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			select {
			case errCh <- errors.New("callback missing authorization code"):
			default:
			}
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, successHTML)
		select {
		case codeCh <- code:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	timeout := m.CallbackTimeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		if mismatches.Load() > 0 {
			return ErrCallbackStateMismatch
		}
		return ErrCallbackTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()

	tok, err := flow.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		return errors.New("authorization response missing refresh token")
	}

	if err := m.creds.Set(tok.RefreshToken); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	m.mu.Lock()
	m.token = tok.AccessToken
	m.expiry = tok.Expiry
	m.mu.Unlock()

	m.logger.Debug("login complete",
		logging.Operation("auth.login"),
		slog.String("refresh_token", logging.SanitizeToken(tok.RefreshToken)))
	return nil
}

// randomState returns an unguessable anti-forgery value for one flow.
func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
