package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/gmail/v1"
)

// Microsoft Graph scopes needed to read mail and keep a refresh token.
var graphScopes = []string{"offline_access", "https://graph.microsoft.com/Mail.Read"}

// OAuthConfig holds the OAuth2 client of one provider and where its token lives.
type OAuthConfig struct {
	Endpoint     oauth2.Endpoint
	ClientID     string
	ClientSecret string
	TokenFile    string
	CallbackAddr string
	Scopes       []string
}

// GoogleOAuth returns the OAuth configuration for read-only Gmail access.
func GoogleOAuth(clientID, clientSecret, tokenFile string) OAuthConfig {
	return OAuthConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
}

// MicrosoftOAuth returns the OAuth configuration for Graph mail access in tenant.
func MicrosoftOAuth(clientID, clientSecret, tenant, tokenFile string) OAuthConfig {
	if tenant == "" {
		tenant = "common"
	}
	return OAuthConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
		Endpoint:     microsoft.AzureADEndpoint(tenant),
		Scopes:       graphScopes,
	}
}

func (c OAuthConfig) oauth2Config() *oauth2.Config {
	addr := c.CallbackAddr
	if addr == "" {
		addr = "localhost:8080"
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     c.Endpoint,
		RedirectURL:  "http://" + addr + "/callback",
		Scopes:       c.Scopes,
	}
}

// AuthenticateInteractive runs the authorization-code flow against a local callback
// server and saves the resulting token.
func AuthenticateInteractive(ctx context.Context, cfg OAuthConfig) (*oauth2.Token, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: OAuth client ID", common.ErrMissingConfig)
	}

	oauthConfig := cfg.oauth2Config()
	state := uuid.NewString()

	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" || r.URL.Query().Get("state") != state {
			errorChan <- fmt.Errorf("no valid authorization code received")
			_, _ = fmt.Fprint(w, `<html><body>
				<h1>Authentication Failed</h1>
				<p>No authorization code received. Please try again.</p>
			</body></html>`)
			return
		}

		codeChan <- code
		_, _ = fmt.Fprint(w, `<html><body>
			<h1>Mailbox connected</h1>
			<p>You can close this window and return to the terminal.</p>
		</body></html>`)
	})

	addr := cfg.CallbackAddr
	if addr == "" {
		addr = "localhost:8080"
	}
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errorChan <- fmt.Errorf("failed to start callback server: %w", err)
		}
	}()

	authURL := oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	slog.Info("Mailbox authorization required")
	slog.Info("Please visit this URL to authorize read access", "url", authURL)

	var authCode string
	select {
	case authCode = <-codeChan:
		slog.Info("Received authorization code")
	case err := <-errorChan:
		_ = server.Shutdown(ctx)
		return nil, err
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return nil, ctx.Err()
	case <-time.After(5 * time.Minute):
		_ = server.Shutdown(ctx)
		return nil, fmt.Errorf("authentication timeout - no response received within 5 minutes")
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("Error shutting down callback server", "error", err)
	}

	token, err := oauthConfig.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if cfg.TokenFile != "" {
		if err := saveToken(cfg.TokenFile, token); err != nil {
			return nil, err
		}
		slog.Info("Token saved", "file", cfg.TokenFile)
	}
	return token, nil
}

// LoadToken loads a token from file.
func LoadToken(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// persistingTokenSource writes refreshed tokens back to disk so a refresh token
// rotated by the provider is not lost.
type persistingTokenSource struct {
	src     oauth2.TokenSource
	current *oauth2.Token
	path    string
	mu      sync.Mutex
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" && (s.current == nil || s.current.AccessToken != t.AccessToken) {
		s.current = t
		if err := saveToken(s.path, t); err != nil {
			slog.Warn("Failed to save refreshed token", "file", s.path, "error", err)
		}
	}
	return t, nil
}

// HTTPClient returns an HTTP client authorized with the saved token, refreshing it
// as needed. It fails with ErrMissingConfig when no token has been saved yet.
func HTTPClient(ctx context.Context, cfg OAuthConfig) (*http.Client, error) {
	token, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: no saved token at %s (run `tracker auth`): %v", common.ErrMissingConfig, cfg.TokenFile, err)
	}

	source := &persistingTokenSource{
		src:     cfg.oauth2Config().TokenSource(ctx, token),
		current: token,
		path:    cfg.TokenFile,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source)), nil
}
