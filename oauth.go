package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	appDir              = "gcal-planner"
	credentialsFile     = "gcal-credentials.json"
	tokenFile           = "gcal-tokens.json"
	DefaultCallbackPort = 8085

	envClientID     = "GOOGLE_CLIENT_ID"
	envClientSecret = "GOOGLE_CLIENT_SECRET"
)

// newOAuthService is swapped in tests.
var newOAuthService = func(ctx context.Context, httpClient *http.Client) (*oauth2api.Service, error) {
	return oauth2api.NewService(ctx, option.WithHTTPClient(httpClient))
}

// Paths locates the credentials file and the token store.
type Paths struct {
	ConfigDir string
	DataDir   string
}

// DefaultPaths returns ~/.config/gcal-planner and ~/.local/share/gcal-planner,
// honoring XDG_CONFIG_HOME and XDG_DATA_HOME.
func DefaultPaths() (Paths, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	dataHome := os.Getenv("XDG_DATA_HOME")
	if configHome == "" || dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		if configHome == "" {
			configHome = filepath.Join(home, ".config")
		}
		if dataHome == "" {
			dataHome = filepath.Join(home, ".local", "share")
		}
	}
	return Paths{
		ConfigDir: filepath.Join(configHome, appDir),
		DataDir:   filepath.Join(dataHome, appDir),
	}, nil
}

// LoadCredentials loads OAuth client credentials from the config dir,
// falling back to GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET.
func (p Paths) LoadCredentials() (*Credentials, error) {
	path := filepath.Join(p.ConfigDir, credentialsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		id, secret := os.Getenv(envClientID), os.Getenv(envClientSecret)
		if id == "" || secret == "" {
			return nil, fmt.Errorf("%s: credentials not found at %s and %s/%s unset", ErrNotConfigured, path, envClientID, envClientSecret)
		}
		return &Credentials{ClientID: id, ClientSecret: secret}, nil
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("credentials file missing clientId or clientSecret")
	}
	return &creds, nil
}

// getOAuthConfig creates OAuth2 config from credentials
func getOAuthConfig(creds *Credentials, port int) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", port),
		Scopes:       []string{calendar.CalendarScope},
	}
}

// LoadToken loads the saved OAuth token. A missing file yields nil, nil.
func (p Paths) LoadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(filepath.Join(p.DataDir, tokenFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token: %w", err)
	}

	var store TokenStore
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &oauth2.Token{
		AccessToken:  store.AccessToken,
		RefreshToken: store.RefreshToken,
		TokenType:    store.TokenType,
		Expiry:       store.Expiry,
	}, nil
}

// SaveToken saves the OAuth token with 0600 permissions.
func (p Paths) SaveToken(token *oauth2.Token) error {
	if err := os.MkdirAll(p.DataDir, 0o700); err != nil {
		return err
	}
	store := TokenStore{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.DataDir, tokenFile), data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// RunAuthFlow performs the OAuth browser flow and saves the token.
// Progress messages go to out.
func (p Paths) RunAuthFlow(ctx context.Context, creds *Credentials, port int, out io.Writer) error {
	if port <= 0 {
		port = DefaultCallbackPort
	}
	config := getOAuthConfig(creds, port)
	state := uuid.NewString()

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("start callback server: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "State mismatch", http.StatusBadRequest)
			select {
			case errChan <- errors.New("oauth state mismatch"):
			default:
			}
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "No code received", http.StatusBadRequest)
			select {
			case errChan <- errors.New("no code in callback"):
			default:
			}
			return
		}
		select {
		case codeChan <- code:
		default:
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><h1>Authorization successful!</h1><p>You can close this tab and return to the terminal.</p></body></html>`)
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	defer server.Close()

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "Opening browser for authorization...\n")
	fmt.Fprintf(out, "If browser doesn't open, visit:\n%s\n\n", authURL)
	openBrowser(authURL)

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("authorization timeout - no response received")
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	if err := p.SaveToken(token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	fmt.Fprintln(out, "Authorization successful! Token saved.")
	return nil
}

// openBrowser opens url in the default browser, fire and forget.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err == nil {
		go func() { _ = cmd.Wait() }()
	}
}

// tokenSource loads credentials and token and returns a refreshing source.
func (p Paths) tokenSource(ctx context.Context) (oauth2.TokenSource, *oauth2.Token, error) {
	creds, err := p.LoadCredentials()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", ErrNotConfigured, err)
	}
	token, err := p.LoadToken()
	if err != nil {
		return nil, nil, fmt.Errorf("load token: %w", err)
	}
	if token == nil {
		return nil, nil, fmt.Errorf("%s: no token found - run 'gplan auth login' first", ErrNotConfigured)
	}
	return getOAuthConfig(creds, DefaultCallbackPort).TokenSource(ctx, token), token, nil
}

// GetClient returns an authenticated HTTP client, refreshing token if needed
func (p Paths) GetClient(ctx context.Context) (*http.Client, error) {
	ts, token, err := p.tokenSource(ctx)
	if err != nil {
		return nil, err
	}

	newToken, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrTokenExpired, err)
	}
	if newToken.AccessToken != token.AccessToken {
		if err := p.SaveToken(newToken); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to save refreshed token")
		}
	}
	return oauth2.NewClient(ctx, ts), nil
}

// IsConfigured checks if credentials and token are available
func (p Paths) IsConfigured() bool {
	creds, err := p.LoadCredentials()
	if err != nil || creds == nil {
		return false
	}
	token, err := p.LoadToken()
	return err == nil && token != nil
}

// Status asks Google which scopes the stored token carries.
func (p Paths) Status(ctx context.Context) (AuthStatus, error) {
	if !p.IsConfigured() {
		return AuthStatus{}, nil
	}
	httpClient, err := p.GetClient(ctx)
	if err != nil {
		return AuthStatus{}, err
	}
	token, err := p.LoadToken()
	if err != nil {
		return AuthStatus{}, err
	}
	return CheckScopes(ctx, httpClient, token.AccessToken)
}

// CheckScopes looks up accessToken with the tokeninfo endpoint.
func CheckScopes(ctx context.Context, httpClient *http.Client, accessToken string) (AuthStatus, error) {
	svc, err := newOAuthService(ctx, httpClient)
	if err != nil {
		return AuthStatus{}, fmt.Errorf("%s: create oauth2 service: %w", ErrAPIError, err)
	}
	info, err := svc.Tokeninfo().AccessToken(accessToken).Context(ctx).Do()
	if err != nil {
		return AuthStatus{}, fmt.Errorf("%s: tokeninfo: %w", ErrAPIError, err)
	}

	st := AuthStatus{
		Configured: true,
		Email:      info.Email,
		Scopes:     strings.Fields(info.Scope),
	}
	if info.ExpiresIn > 0 {
		st.Expiry = time.Now().Add(time.Duration(info.ExpiresIn) * time.Second)
	}
	for _, s := range st.Scopes {
		if s == calendar.CalendarScope || s == calendar.CalendarEventsScope {
			st.CanWrite = true
		}
	}
	return st, nil
}
