package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type CacheAdaptor interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

var ErrCacheMiss = eris.New("cache miss")

type cacheTTLKey struct{}

// MemoryCache is a CacheAdaptor kept in process memory, suitable for a single CLI run
// or the long-lived watch loop.
type MemoryCache struct {
	cache *ttlcache.Cache[string, string]
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	return &MemoryCache{cache: cache}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	item := m.cache.Get(key)
	if item == nil {
		return "", ErrCacheMiss
	}
	return item.Value(), nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	m.cache.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) Close() {
	m.cache.Stop()
}

type cachingTransport struct {
	next     http.RoundTripper
	cacheKey func(*http.Request) string
	cache    CacheAdaptor
	logger   zerolog.Logger
}

func (c *cachingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	// only cache idempotent requests
	if request.Method != http.MethodGet && request.Method != http.MethodHead {
		return c.next.RoundTrip(request)
	}

	ctx := request.Context()

	ttl, ttlOk := ctx.Value(cacheTTLKey{}).(time.Duration)
	if !ttlOk || ttl == 0 {
		return c.next.RoundTrip(request)
	}

	requestKey := c.cacheKey(request)
	if cachedResponse, cacheErr := c.cache.Get(ctx, requestKey); cacheErr == nil {
		reader := bufio.NewReader(strings.NewReader(cachedResponse))
		response, readErr := http.ReadResponse(reader, request)
		if readErr == nil {
			c.logger.Debug().Str("url", request.URL.Path).Msg("serving steam response from cache")
			return response, nil
		}
		c.logger.Warn().Err(readErr).Str("url", request.URL.Path).Msg("discarding unreadable cached response")
	}

	response, err := c.next.RoundTrip(request)
	if err != nil {
		return nil, err
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return response, nil
	}

	if err := c.cacheResponse(ctx, requestKey, response, ttl); err != nil {
		c.logger.Warn().Err(err).Str("url", request.URL.Path).Msg("couldn't cache steam response")
	}

	return response, nil
}

func (c *cachingTransport) cacheResponse(
	ctx context.Context,
	key string,
	response *http.Response,
	ttl time.Duration,
) error {
	// DumpResponse buffers and restores the body, so the caller can still read it.
	responseDump, dumpErr := httputil.DumpResponse(response, true)
	if dumpErr != nil {
		return dumpErr
	}

	return c.cache.Set(ctx, key, string(responseDump), ttl)
}

func ContextWithCachingTtl(ctx context.Context, ttl time.Duration) context.Context {
	return context.WithValue(ctx, cacheTTLKey{}, ttl)
}

func newCachingTransport(next http.RoundTripper, cache CacheAdaptor, logger zerolog.Logger) http.RoundTripper {
	return &cachingTransport{
		next:     next,
		cacheKey: func(request *http.Request) string { return request.URL.String() },
		cache:    cache,
		logger:   logger,
	}
}
