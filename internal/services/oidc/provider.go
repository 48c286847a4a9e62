package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config describes the single federated identity provider
type Config struct {
	Issuer       string
	JWKSURL      string // optional; discovered when empty
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Enabled reports whether federated sign-in is configured
func (c Config) Enabled() bool {
	return c.Issuer != "" && c.ClientID != ""
}

// Endpoints are the provider URLs used by the code flow and verifier
type Endpoints struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Provider resolves provider endpoints, preferring the discovery document
type Provider struct {
	config     Config
	httpClient *http.Client

	mu        sync.Mutex
	endpoints *Endpoints
}

// NewProvider creates a new OIDC provider
func NewProvider(config Config) *Provider {
	return &Provider{
		config:     config,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Config returns the provider configuration
func (p *Provider) Config() Config {
	return p.config
}

// Endpoints returns the provider endpoints. A successful discovery is
// cached; on failure the endpoints are derived from the issuer.
func (p *Provider) Endpoints(ctx context.Context) Endpoints {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.endpoints != nil {
		return *p.endpoints
	}

	issuer := strings.TrimSuffix(p.config.Issuer, "/")
	fallback := Endpoints{
		AuthorizationEndpoint: issuer + "/oauth2/authorize",
		TokenEndpoint:         issuer + "/oauth2/token",
		JWKSURI:               issuer + "/.well-known/jwks.json",
	}

	discovered, err := p.discover(ctx, issuer)
	if err != nil {
		if p.config.JWKSURL != "" {
			fallback.JWKSURI = p.config.JWKSURL
		}
		return fallback
	}
	if discovered.AuthorizationEndpoint == "" {
		discovered.AuthorizationEndpoint = fallback.AuthorizationEndpoint
	}
	if discovered.TokenEndpoint == "" {
		discovered.TokenEndpoint = fallback.TokenEndpoint
	}
	if p.config.JWKSURL != "" {
		discovered.JWKSURI = p.config.JWKSURL
	} else if discovered.JWKSURI == "" {
		discovered.JWKSURI = fallback.JWKSURI
	}
	p.endpoints = discovered
	return *discovered
}

func (p *Provider) discover(ctx context.Context, issuer string) (*Endpoints, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}
	var endpoints Endpoints
	if err := json.NewDecoder(resp.Body).Decode(&endpoints); err != nil {
		return nil, fmt.Errorf("failed to decode discovery document: %w", err)
	}
	return &endpoints, nil
}

// LoginConfig contains the parameters a client needs to start the code flow
type LoginConfig struct {
	AuthorizationURL string `json:"authorization_url"`
	ClientID         string `json:"client_id"`
	RedirectURI      string `json:"redirect_uri"`
	Scope            string `json:"scope"`
	State            string `json:"state"`
}
