// Package auth builds http.RoundTrippers that authenticate discovery
// requests against protected services.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Mode selects how requests are authenticated.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeAPIKey Mode = "apikey"
	ModeBearer Mode = "bearer"
	ModeBasic  Mode = "basic"
	ModeOAuth2 Mode = "oauth2"
)

// ErrMissingCredentials is returned when a mode lacks its credentials.
var ErrMissingCredentials = errors.New("auth: missing credentials")

// Config describes the credentials of a service.
type Config struct {
	Mode Mode `yaml:"mode" env:"MODE"`

	// APIKey is sent in APIKeyHeader (Authorization when empty) or, when
	// APIKeyQuery is set, as that query parameter.
	APIKey       string `yaml:"apiKey" env:"API_KEY"`
	APIKeyHeader string `yaml:"apiKeyHeader" env:"API_KEY_HEADER"`
	APIKeyQuery  string `yaml:"apiKeyQuery" env:"API_KEY_QUERY"`

	Token string `yaml:"token" env:"TOKEN"`

	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`

	// OAuth2 client credentials grant.
	ClientID     string   `yaml:"clientId" env:"CLIENT_ID"`
	ClientSecret string   `yaml:"clientSecret" env:"CLIENT_SECRET"`
	TokenURL     string   `yaml:"tokenUrl" env:"TOKEN_URL"`
	Scopes       []string `yaml:"scopes" env:"SCOPES"`
}

// Validate checks that the selected mode has what it needs.
func (c Config) Validate() error {
	switch c.Mode {
	case "", ModeNone:
		return nil
	case ModeAPIKey:
		if c.APIKey == "" {
			return fmt.Errorf("%w: apikey mode needs an api key", ErrMissingCredentials)
		}
	case ModeBearer:
		if c.Token == "" {
			return fmt.Errorf("%w: bearer mode needs a token", ErrMissingCredentials)
		}
	case ModeBasic:
		if c.Username == "" {
			return fmt.Errorf("%w: basic mode needs a username", ErrMissingCredentials)
		}
	case ModeOAuth2:
		if c.ClientID == "" || c.TokenURL == "" {
			return fmt.Errorf("%w: oauth2 mode needs a client id and a token url", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("auth: unknown mode %q", c.Mode)
	}
	return nil
}

// NewTransport wraps base (http.DefaultTransport when nil) with the
// authentication cfg selects. ctx bounds OAuth2 token requests.
func NewTransport(ctx context.Context, cfg Config, base http.RoundTripper) (http.RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultTransport
	}

	switch cfg.Mode {
	case ModeAPIKey:
		return &APIKeyTransport{Key: cfg.APIKey, Header: cfg.APIKeyHeader, Query: cfg.APIKeyQuery, Base: base}, nil
	case ModeBearer:
		return &BearerTokenTransport{Token: cfg.Token, Base: base}, nil
	case ModeBasic:
		return &BasicAuthTransport{Username: cfg.Username, Password: cfg.Password, Base: base}, nil
	case ModeOAuth2:
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// Token requests go through base too.
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})
		return &oauth2.Transport{Source: cc.TokenSource(ctx), Base: base}, nil
	default:
		return base, nil
	}
}

// Middleware validates cfg and returns a wrapper suitable for
// fetch.WithTransport.
func Middleware(ctx context.Context, cfg Config) (func(http.RoundTripper) http.RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return func(base http.RoundTripper) http.RoundTripper {
		// cfg is valid, NewTransport cannot fail.
		rt, _ := NewTransport(ctx, cfg, base)
		return rt
	}, nil
}

// APIKeyTransport injects an API key into outgoing requests.
type APIKeyTransport struct {
	Key    string
	Header string
	Query  string
	Base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *APIKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	switch {
	case t.Key == "":
	case t.Query != "":
		query := clone.URL.Query()
		query.Set(t.Query, t.Key)
		clone.URL.RawQuery = query.Encode()
	default:
		header := t.Header
		if header == "" {
			header = "Authorization"
		}
		clone.Header.Set(header, t.Key)
	}
	return baseOf(t.Base).RoundTrip(clone)
}

// BearerTokenTransport injects a bearer token.
type BearerTokenTransport struct {
	Token string
	Base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if token := strings.TrimSpace(t.Token); token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return baseOf(t.Base).RoundTrip(clone)
}

// BasicAuthTransport sets HTTP basic credentials.
type BasicAuthTransport struct {
	Username string
	Password string
	Base     http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.Username, t.Password)
	return baseOf(t.Base).RoundTrip(clone)
}

func baseOf(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
