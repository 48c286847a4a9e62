package middleware

import (
	"net/http"

	"github.com/benvon/tag-a-log/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const (
	defaultRatelimitRate = "20-S"
	limiterKeyPrefix     = "tagalog:ratelimit"
)

// NewLimiterStore returns a Redis-backed limiter store shared by every server
// replica, or a process-local memory store when redisClient is nil.
func NewLimiterStore(redisClient *redis.Client) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: limiterKeyPrefix}
	if redisClient == nil {
		return memorystore.NewStoreWithOptions(opts), nil
	}
	return redisstore.NewStoreWithOptions(redisClient, opts)
}

// rateLimitHandler builds the ulule middleware for rate, keyed by client IP
func rateLimitHandler(store limiter.Store, rate limiter.Rate, next http.Handler) http.Handler {
	instance := limiter.New(store, rate)
	keyGetter := func(r *http.Request) string {
		return request.ClientIP(r)
	}
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(keyGetter))
	return mw.Handler(next)
}
