package httpclient

import (
	"fmt"
	"net/http"
)

// Auth schemes accepted in configuration.
const (
	SchemeBearer = "bearer"
	SchemeBasic  = "basic"
	// SchemeHeader sends Token verbatim in the header named Header, as
	// shared-secret webhooks expect.
	SchemeHeader = "header"
)

const defaultAuthHeader = "X-API-Key"

// AuthConfig describes how requests authenticate. A zero value sends no
// credentials.
type AuthConfig struct {
	Scheme   string `yaml:"scheme" mapstructure:"scheme"`
	Token    string `yaml:"token" mapstructure:"token"`
	Header   string `yaml:"header" mapstructure:"header"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// BearerAuth sends "Authorization: Bearer <token>".
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Scheme: SchemeBearer, Token: token}
}

// BasicAuth sends HTTP basic credentials.
func BasicAuth(username, password string) *AuthConfig {
	return &AuthConfig{Scheme: SchemeBasic, Username: username, Password: password}
}

// HeaderAuth sends token in header (X-API-Key when empty).
func HeaderAuth(token, header string) *AuthConfig {
	return &AuthConfig{Scheme: SchemeHeader, Token: token, Header: header}
}

// IsZero reports whether no scheme is configured.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Scheme == "" }

// Validate checks that the chosen scheme has its credentials.
func (a *AuthConfig) Validate() error {
	if a.IsZero() {
		return nil
	}
	switch a.Scheme {
	case SchemeBearer, SchemeHeader:
		if a.Token == "" {
			return fmt.Errorf("httpclient: %s auth requires a token", a.Scheme)
		}
	case SchemeBasic:
		if a.Username == "" {
			return fmt.Errorf("httpclient: basic auth requires a username")
		}
	default:
		return fmt.Errorf("httpclient: unknown auth scheme %q", a.Scheme)
	}
	return nil
}

func (a *AuthConfig) apply(req *http.Request) {
	if a.IsZero() {
		return
	}
	switch a.Scheme {
	case SchemeBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case SchemeBasic:
		req.SetBasicAuth(a.Username, a.Password)
	case SchemeHeader:
		name := a.Header
		if name == "" {
			name = defaultAuthHeader
		}
		req.Header.Set(name, a.Token)
	}
}
