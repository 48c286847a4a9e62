package models

// JWTClaims are the verified claims of either a session token issued by this
// service or an ID token from the federated provider. Sub is the owner id for
// session tokens and the provider subject for ID tokens.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Exp   int64  `json:"exp"`
	Iat   int64  `json:"iat"`
	Iss   string `json:"iss"`
	Aud   string `json:"aud"`
	Jti   string `json:"jti"` // revocation key for session tokens
}

// Session is a signed session token returned by sign-up and sign-in
type Session struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds
}
