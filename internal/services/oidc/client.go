package oidc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when the token response carries no id_token
var ErrNoIDToken = errors.New("token response has no id_token")

// Client wraps OAuth2 client functionality
type Client struct {
	config *oauth2.Config
}

// NewClient creates a new OAuth2 client for the provider
func NewClient(cfg Config, endpoints Endpoints) *Client {
	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoints.AuthorizationEndpoint,
			TokenURL: endpoints.TokenEndpoint,
		},
	}

	return &Client{config: config}
}

// ExchangeCode exchanges an authorization code and returns the raw ID token
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}
	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", ErrNoIDToken
	}
	return idToken, nil
}

// AuthCodeURL returns the authorization URL
func (c *Client) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// LoginConfig returns the parameters a client needs to start the code flow
func (c *Client) LoginConfig(state string) *LoginConfig {
	return &LoginConfig{
		AuthorizationURL: c.AuthCodeURL(state),
		ClientID:         c.config.ClientID,
		RedirectURI:      c.config.RedirectURL,
		Scope:            "openid email profile",
		State:            state,
	}
}
