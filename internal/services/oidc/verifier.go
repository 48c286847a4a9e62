package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/tag-a-log/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier verifies ID tokens issued by the federated provider
type Verifier struct {
	jwksManager *JWKSManager
	provider    *Provider
}

// NewVerifier creates a new ID token verifier
func NewVerifier(jwksManager *JWKSManager, provider *Provider) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		provider:    provider,
	}
}

// Verify checks the signature, issuer, audience and lifetime of an ID token
// and extracts its claims. A failure triggers one rate-limited key set
// refresh and a retry, to pick up a rotated key.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	cfg := v.provider.Config()
	jwksURL := v.provider.Endpoints(ctx).JWKSURI

	token, err := v.parse(ctx, tokenString, jwksURL, cfg)
	if err != nil {
		if _, refreshErr := v.jwksManager.Refresh(ctx, jwksURL); refreshErr != nil {
			return nil, err
		}
		token, err = v.parse(ctx, tokenString, jwksURL, cfg)
		if err != nil {
			return nil, err
		}
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}
	if email, ok := token.Get("email"); ok {
		if emailStr, ok := email.(string); ok {
			claims.Email = emailStr
		}
	}
	if name, ok := token.Get("name"); ok {
		if nameStr, ok := name.(string); ok {
			claims.Name = nameStr
		}
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}
	return claims, nil
}

func (v *Verifier) parse(ctx context.Context, tokenString, jwksURL string, cfg Config) (jwt.Token, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.ClientID),
		jwt.WithAcceptableSkew(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	return token, nil
}
