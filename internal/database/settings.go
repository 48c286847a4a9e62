package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/tag-a-log/internal/docstore"
	"github.com/benvon/tag-a-log/internal/models"
)

const (
	settingsCollection = "settings"
	corsSettingsID     = "cors"
	rateLimitSettingID = "ratelimit"

	fieldAllowedOrigins   = "allowedOrigins"
	fieldAllowCredentials = "allowCredentials"
	fieldMaxAge           = "maxAge"
	fieldRate             = "rate"
)

// SettingsRepository handles runtime settings that the server hot-reloads
type SettingsRepository struct {
	db DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetCors returns the CORS settings, or nil if none are stored
func (r *SettingsRepository) GetCors(ctx context.Context) (*models.CorsSettings, error) {
	doc, err := r.db.Get(ctx, docstore.Doc(settingsCollection, corsSettingsID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cors settings: %w", err)
	}
	maxAge, _ := doc.Fields[fieldMaxAge].(float64)
	allowCreds, _ := doc.Fields[fieldAllowCredentials].(bool)
	return &models.CorsSettings{
		AllowedOrigins:   stringField(doc.Fields, fieldAllowedOrigins),
		AllowCredentials: allowCreds,
		MaxAge:           int(maxAge),
		UpdatedAt:        timeField(doc.Fields, fieldUpdatedAt),
	}, nil
}

// SetCors replaces the CORS settings. AllowedOrigins is comma-separated.
func (r *SettingsRepository) SetCors(ctx context.Context, c *models.CorsSettings) error {
	origins := strings.TrimSpace(c.AllowedOrigins)
	if origins == "" {
		return fmt.Errorf("allowed_origins cannot be empty")
	}
	err := r.db.SetMerge(ctx, docstore.Doc(settingsCollection, corsSettingsID), docstore.Fields{
		fieldAllowedOrigins:   origins,
		fieldAllowCredentials: c.AllowCredentials,
		fieldMaxAge:           c.MaxAge,
		fieldUpdatedAt:        docstore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("set cors settings: %w", err)
	}
	return nil
}

// GetRateLimit returns the rate limit settings, or nil if none are stored
func (r *SettingsRepository) GetRateLimit(ctx context.Context) (*models.RateLimitSettings, error) {
	doc, err := r.db.Get(ctx, docstore.Doc(settingsCollection, rateLimitSettingID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ratelimit settings: %w", err)
	}
	return &models.RateLimitSettings{
		Rate:      stringField(doc.Fields, fieldRate),
		UpdatedAt: timeField(doc.Fields, fieldUpdatedAt),
	}, nil
}

// SetRateLimit replaces the rate limit settings
func (r *SettingsRepository) SetRateLimit(ctx context.Context, s *models.RateLimitSettings) error {
	rate := strings.TrimSpace(s.Rate)
	if rate == "" {
		return fmt.Errorf("rate cannot be empty")
	}
	err := r.db.SetMerge(ctx, docstore.Doc(settingsCollection, rateLimitSettingID), docstore.Fields{
		fieldRate:      rate,
		fieldUpdatedAt: docstore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("set ratelimit settings: %w", err)
	}
	return nil
}

// AllowedOriginsSlice returns allowed origins as a slice (split by comma).
func AllowedOriginsSlice(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	seen := make(map[string]bool)
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
