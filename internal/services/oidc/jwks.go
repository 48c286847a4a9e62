package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

const (
	defaultKeySetTTL = time.Hour
	// bounds refetches triggered by tokens with unknown key ids
	defaultMinRefreshInterval = 30 * time.Second
	maxKeySetBytes            = 1 << 20
)

type cachedKeySet struct {
	keys      jwk.Set
	fetchedAt time.Time
}

// JWKSManager fetches and caches the provider's signing keys. Concurrent
// misses for the same URL share one request.
type JWKSManager struct {
	mu    sync.RWMutex
	cache map[string]*cachedKeySet
	group singleflight.Group

	ttl                time.Duration
	minRefreshInterval time.Duration
	httpClient         *http.Client
	now                func() time.Time
}

// NewJWKSManager creates a JWKS manager with a one hour cache
func NewJWKSManager() *JWKSManager {
	return &JWKSManager{
		cache:              make(map[string]*cachedKeySet),
		ttl:                defaultKeySetTTL,
		minRefreshInterval: defaultMinRefreshInterval,
		httpClient:         &http.Client{Timeout: 10 * time.Second},
		now:                time.Now,
	}
}

// GetJWKS returns the key set at jwksURL, fetching it when absent or stale
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	if entry := m.cached(jwksURL); entry != nil && m.now().Sub(entry.fetchedAt) < m.ttl {
		return entry.keys, nil
	}
	return m.load(ctx, jwksURL)
}

// Refresh refetches the key set after a verification failure, typically a
// rotated signing key. A set fetched within the minimum refresh interval is
// returned as is.
func (m *JWKSManager) Refresh(ctx context.Context, jwksURL string) (jwk.Set, error) {
	if entry := m.cached(jwksURL); entry != nil && m.now().Sub(entry.fetchedAt) < m.minRefreshInterval {
		return entry.keys, nil
	}
	return m.load(ctx, jwksURL)
}

func (m *JWKSManager) cached(jwksURL string) *cachedKeySet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache[jwksURL]
}

func (m *JWKSManager) load(ctx context.Context, jwksURL string) (jwk.Set, error) {
	v, err, _ := m.group.Do(jwksURL, func() (any, error) {
		keys, err := m.fetchJWKS(ctx, jwksURL)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.cache[jwksURL] = &cachedKeySet{keys: keys, fetchedAt: m.now()}
		m.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	return v.(jwk.Set), nil
}

func (m *JWKSManager) fetchJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("no JWKS URL configured or discovered")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	if keys.Len() == 0 {
		return nil, fmt.Errorf("JWKS contains no keys")
	}
	return keys, nil
}
