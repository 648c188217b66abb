package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"github.com/vijay-prabhu/gmailconn/internal/config"
	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// Scopes defines the OAuth scopes requested for every credential type
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailModifyScope,
}

// callbackAddr is where the consent flow listens for the redirect
const callbackAddr = "localhost:8080"

// tokenSource builds the credential source for the configured auth type.
// Construction problems are configuration failures and are never retried.
func tokenSource(ctx context.Context, cfg config.AuthConfig) (oauth2.TokenSource, error) {
	switch cfg.Type {
	case config.AuthOAuth2:
		if cfg.ClientID != "" && cfg.ClientSecret != "" {
			return inlineTokenSource(ctx, cfg)
		}
		return fileTokenSource(ctx, cfg)
	case config.AuthServiceAccount:
		return serviceAccountTokenSource(ctx, cfg)
	case "":
		return nil, failure.Configf("authentication configuration required")
	default:
		return nil, failure.Configf("unsupported auth type: %s", cfg.Type)
	}
}

// inlineTokenSource uses client credentials and a long-lived refresh token
func inlineTokenSource(ctx context.Context, cfg config.AuthConfig) (oauth2.TokenSource, error) {
	if cfg.RefreshToken == "" {
		return nil, failure.Configf("auth.refresh_token (or %s) is required with inline client credentials", config.EnvRefreshToken)
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
	}

	return oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}), nil
}

// serviceAccountTokenSource signs JWTs with a service account key, optionally
// impersonating cfg.Subject
func serviceAccountTokenSource(ctx context.Context, cfg config.AuthConfig) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, failure.Configf("failed to read service account key: %w", err)
	}

	jwtCfg, err := google.JWTConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, failure.Configf("failed to parse service account key: %w", err)
	}
	jwtCfg.Subject = cfg.Subject

	return jwtCfg.TokenSource(ctx), nil
}

// fileTokenSource loads client secrets from disk and a cached token, running
// the browser consent flow when no token has been saved yet
func fileTokenSource(ctx context.Context, cfg config.AuthConfig) (oauth2.TokenSource, error) {
	oc, err := loadCredentials(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	token, err := loadToken(cfg.TokenPath)
	if err != nil {
		// Need to authenticate
		token, err = getTokenFromWeb(ctx, oc)
		if err != nil {
			return nil, err
		}

		if err := saveToken(cfg.TokenPath, token); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
	}

	return &persistingTokenSource{
		base: oc.TokenSource(ctx, token),
		path: cfg.TokenPath,
		last: token.AccessToken,
	}, nil
}

// persistingTokenSource writes refreshed tokens back to the token file
type persistingTokenSource struct {
	base oauth2.TokenSource
	path string
	last string
}

// Token implements oauth2.TokenSource
func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if t.AccessToken != s.last {
		s.last = t.AccessToken
		_ = saveToken(s.path, t)
	}
	return t, nil
}

// loadCredentials loads OAuth config from credentials file
func loadCredentials(credPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credPath)
	if err != nil {
		return nil, failure.Configf("failed to read credentials file: %w\n\nTo set up Gmail API:\n1. Go to https://console.cloud.google.com/\n2. Create a project and enable Gmail API\n3. Create OAuth 2.0 credentials (Desktop app)\n4. Download and save to: %s", err, credPath)
	}

	oc, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, failure.Configf("failed to parse credentials: %w", err)
	}

	return oc, nil
}

// loadToken loads a saved OAuth token
func loadToken(tokenPath string) (*oauth2.Token, error) {
	if tokenPath == "" {
		return nil, errors.New("no token path configured")
	}

	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, err
	}

	return token, nil
}

// saveToken saves an OAuth token to file
func saveToken(tokenPath string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(tokenPath), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath, data, 0600)
}

// getTokenFromWeb performs the OAuth flow via browser
func getTokenFromWeb(ctx context.Context, oc *oauth2.Config) (*oauth2.Token, error) {
	state := fmt.Sprintf("%d", time.Now().UnixNano())

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			errChan <- errors.New("invalid state parameter")
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errChan <- errors.New("no code in callback")
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>Authentication successful!</h1><p>You can close this window.</p></body></html>`)
		codeChan <- code
	})

	ln, err := net.Listen("tcp", callbackAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer server.Close()

	oc.RedirectURL = "http://" + callbackAddr + "/callback"
	authURL := oc.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	fmt.Fprintln(os.Stderr, "Opening browser for Google authentication...")
	fmt.Fprintln(os.Stderr, "If browser doesn't open, visit this URL:")
	fmt.Fprintln(os.Stderr, authURL)
	openBrowser(authURL)

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return nil, failure.Permanent(failure.CategoryAuth, err)
	case <-ctx.Done():
		return nil, failure.Cancelled(ctx.Err())
	case <-time.After(5 * time.Minute):
		return nil, failure.Permanent(failure.CategoryAuth, errors.New("authentication timeout"))
	}

	token, err := oc.Exchange(ctx, code)
	if err != nil {
		return nil, failure.Permanent(failure.CategoryAuth, fmt.Errorf("failed to exchange code: %w", err))
	}

	return token, nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return
	}

	_ = cmd.Start()
}
