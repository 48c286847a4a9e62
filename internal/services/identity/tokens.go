package identity

import (
	"fmt"
	"time"

	"github.com/benvon/tag-a-log/internal/models"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const sessionIssuer = "tag-a-log"

// TokenIssuer signs and verifies session tokens
type TokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenIssuer creates an HS256 session token issuer
func NewTokenIssuer(key []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: key, ttl: ttl, now: time.Now}
}

// Issue creates a session token for identity
func (t *TokenIssuer) Issue(identity *models.Identity) (*models.Session, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	token, err := jwt.NewBuilder().
		Issuer(sessionIssuer).
		Subject(identity.OwnerID()).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim("email", identity.Email).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build session token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, t.key))
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &models.Session{Token: string(signed), ExpiresAt: expiresAt.Unix()}, nil
}

// Parse verifies a session token's signature and lifetime
func (t *TokenIssuer) Parse(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, t.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithClock(jwt.ClockFunc(t.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify session token: %w", err)
	}
	if token.Subject() == "" || token.JwtID() == "" {
		return nil, fmt.Errorf("session token missing subject or id")
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
		Exp: token.Expiration().Unix(),
		Iat: token.IssuedAt().Unix(),
		Jti: token.JwtID(),
	}
	if email, ok := token.Get("email"); ok {
		if emailStr, ok := email.(string); ok {
			claims.Email = emailStr
		}
	}
	return claims, nil
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
