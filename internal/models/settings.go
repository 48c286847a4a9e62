package models

import "time"

// CorsSettings is the runtime CORS configuration edited with the admin CLI
type CorsSettings struct {
	AllowedOrigins   string     `json:"allowed_origins"` // comma-separated
	AllowCredentials bool       `json:"allow_credentials"`
	MaxAge           int        `json:"max_age"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// RateLimitSettings is the runtime rate limit configuration, in ulule
// limiter format such as "100-M"
type RateLimitSettings struct {
	Rate      string     `json:"rate"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
