package gcal

import "time"

// TokenStore holds OAuth tokens for persistence
type TokenStore struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// Credentials holds OAuth client credentials
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// CalendarInfo represents a calendar for listing
type CalendarInfo struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Primary  bool   `json:"primary"`
	TimeZone string `json:"timeZone,omitempty"`
	Access   string `json:"accessRole,omitempty"`
}

// AuthStatus describes the stored authorization.
type AuthStatus struct {
	Configured bool      `json:"configured"`
	Email      string    `json:"email,omitempty"`
	Scopes     []string  `json:"scopes,omitempty"`
	CanWrite   bool      `json:"canWrite"`
	Expiry     time.Time `json:"expiry,omitempty"`
}

// Error codes
const (
	ErrNotConfigured = "not_configured"
	ErrTokenExpired  = "token_expired"
	ErrNetworkError  = "network_error"
	ErrAPIError      = "api_error"
)
