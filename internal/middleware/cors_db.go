package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benvon/tag-a-log/internal/database"
	"github.com/benvon/tag-a-log/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const defaultCORSMaxAge = 86400

// CorsSettingsSource supplies stored CORS settings. *database.SettingsRepository implements it.
type CorsSettingsSource interface {
	GetCors(ctx context.Context) (*models.CorsSettings, error)
}

// CORSReloader wraps rs/cors and periodically reloads CORS settings from the store.
type CORSReloader struct {
	next     http.Handler
	repo     CorsSettingsSource
	fallback string // FRONTEND_URL
	log      *zap.Logger
	interval time.Duration
	mu       sync.RWMutex
	current  http.Handler
	origins  []string
}

// NewCORSReloader creates a CORS middleware that loads settings from the store and hot-reloads them.
func NewCORSReloader(repo CorsSettingsSource, frontendURLFallback string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	if log == nil {
		log = zap.NewNop()
	}
	return &CORSReloader{
		repo:     repo,
		fallback: strings.TrimSpace(frontendURLFallback),
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with CORS and hot-reload.
func (r *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.load(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *CORSReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// AllowedOrigins returns the origins currently in effect
func (r *CORSReloader) AllowedOrigins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.origins...)
}

// AllowsOrigin reports whether origin may open WebSocket subscriptions.
// An empty origin (non-browser client) is allowed.
func (r *CORSReloader) AllowsOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range r.AllowedOrigins() {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (r *CORSReloader) load(ctx context.Context) {
	if r.next == nil {
		return
	}
	settings, err := r.repo.GetCors(ctx)
	if err != nil {
		r.log.Warn("failed_to_load_cors_settings_using_fallback", zap.Error(err))
	}

	origins := database.AllowedOriginsSlice(r.fallback)
	allowCreds := true
	maxAge := defaultCORSMaxAge
	if err == nil && settings != nil {
		origins = database.AllowedOriginsSlice(settings.AllowedOrigins)
		allowCreds = settings.AllowCredentials
		maxAge = settings.MaxAge
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: allowCreds,
		MaxAge:           maxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
	})
	h := c.Handler(r.next)

	r.mu.Lock()
	changed := !equalStrings(r.origins, origins)
	r.current = h
	r.origins = origins
	r.mu.Unlock()

	if changed {
		r.log.Info("cors_settings_loaded", zap.Strings("allowed_origins", origins), zap.Bool("allow_credentials", allowCreds))
	}
}

// ServeHTTP implements http.Handler.
func (r *CORSReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := r.current
	r.mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if r.next != nil {
		r.next.ServeHTTP(w, req)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
