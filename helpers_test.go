package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// setupTestPaths returns isolated config and data directories.
func setupTestPaths(t *testing.T) Paths {
	t.Helper()

	tmpDir := t.TempDir()
	p := Paths{
		ConfigDir: filepath.Join(tmpDir, "config", appDir),
		DataDir:   filepath.Join(tmpDir, "data", appDir),
	}
	for _, dir := range []string{p.ConfigDir, p.DataDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	return p
}

// createTestCredentials creates a test credentials file
func createTestCredentials(t *testing.T, p Paths, creds Credentials) string {
	t.Helper()

	path := filepath.Join(p.ConfigDir, credentialsFile)
	data, err := json.Marshal(creds)
	if err != nil {
		t.Fatalf("Failed to marshal credentials: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write credentials: %v", err)
	}
	return path
}

// createTestToken creates a test token file
func createTestToken(t *testing.T, p Paths, store TokenStore) string {
	t.Helper()

	path := filepath.Join(p.DataDir, tokenFile)
	data, err := json.Marshal(store)
	if err != nil {
		t.Fatalf("Failed to marshal token: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("Failed to write token: %v", err)
	}
	return path
}

// newTestClient serves h as the Calendar API and returns a Client bound to
// calendar "primary".
func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewClient(svc, "")
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg},
	})
}
