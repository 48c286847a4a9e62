package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/tag-a-log/internal/models"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

// RateLimitSettingsStore reads and seeds the stored rate.
// *database.SettingsRepository implements it.
type RateLimitSettingsStore interface {
	GetRateLimit(ctx context.Context) (*models.RateLimitSettings, error)
	SetRateLimit(ctx context.Context, s *models.RateLimitSettings) error
}

// RateLimitReloader wraps ulule/limiter and periodically reloads the rate from the store.
type RateLimitReloader struct {
	next        http.Handler
	store       limiter.Store
	repo        RateLimitSettingsStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration
	mu          sync.RWMutex
	current     http.Handler
	rate        string
}

// NewRateLimitReloader creates a rate limit middleware that loads its rate from the store and hot-reloads it.
func NewRateLimitReloader(store limiter.Store, repo RateLimitSettingsStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) *RateLimitReloader {
	if defaultRate == "" {
		defaultRate = defaultRatelimitRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with rate limiting and hot-reload.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.load(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *RateLimitReloader) Start(ctx context.Context) {
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

// Rate returns the formatted rate currently in effect
func (r *RateLimitReloader) Rate() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

func (r *RateLimitReloader) load(ctx context.Context) {
	if r.next == nil {
		return
	}
	settings, err := r.repo.GetRateLimit(ctx)
	rateStr := r.defaultRate
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_settings_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	case settings != nil && settings.Rate != "":
		rateStr = settings.Rate
	default:
		if err := r.repo.SetRateLimit(ctx, &models.RateLimitSettings{Rate: r.defaultRate}); err != nil {
			r.log.Error("failed_to_save_default_ratelimit_settings",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
		}
	}

	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", rateStr),
			zap.String("default_rate", r.defaultRate),
		)
		rateStr = r.defaultRate
		rate, err = limiter.NewRateFromFormatted(rateStr)
		if err != nil {
			r.log.Error("failed_to_parse_default_rate_limit",
				zap.Error(err),
				zap.String("default_rate", r.defaultRate),
			)
			return
		}
	}

	r.mu.RLock()
	unchanged := r.current != nil && r.rate == rateStr
	r.mu.RUnlock()
	if unchanged {
		return
	}

	h := rateLimitHandler(r.store, rate, r.next)

	r.mu.Lock()
	r.current = h
	r.rate = rateStr
	r.mu.Unlock()
	r.log.Info("ratelimit_loaded", zap.String("rate", rateStr))
}

// ServeHTTP implements http.Handler.
func (r *RateLimitReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
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
