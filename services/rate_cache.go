package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"cash-buying-power/models"
	"cash-buying-power/observability"
)

// DefaultRateCacheTTL is used when a non-positive TTL is given.
const DefaultRateCacheTTL = 5 * time.Minute

// RateCache is an in-memory TTL cache of conversion rates keyed by
// currency pair.
type RateCache struct {
	mu      sync.RWMutex
	entries map[string]rateEntry
	ttl     time.Duration
	now     func() time.Time
}

type rateEntry struct {
	rate     models.ExchangeRate
	storedAt time.Time
}

// NewRateCache creates a RateCache with the given TTL.
func NewRateCache(ttl time.Duration) *RateCache {
	if ttl <= 0 {
		ttl = DefaultRateCacheTTL
	}
	return &RateCache{
		entries: make(map[string]rateEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func rateKey(from, to string) string {
	return strings.ToUpper(from) + "/" + strings.ToUpper(to)
}

// Get returns the cached rate and whether it is still within TTL.
func (c *RateCache) Get(from, to string) (models.ExchangeRate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[rateKey(from, to)]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return models.ExchangeRate{}, false
	}
	return e.rate, true
}

// Set stores a rate.
func (c *RateCache) Set(rate models.ExchangeRate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rateKey(rate.From, rate.To)] = rateEntry{rate: rate, storedAt: c.now()}
}

// Invalidate drops a cached pair, forcing the next lookup to go upstream.
func (c *RateCache) Invalidate(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, rateKey(from, to))
}

// TTL returns the cache's time-to-live duration.
func (c *RateCache) TTL() time.Duration {
	return c.ttl
}

// CachedRateProvider answers from the in-memory cache, then the optional
// persistent store, then the upstream provider.
type CachedRateProvider struct {
	upstream RateProvider
	store    RateStore
	cache    *RateCache
}

// NewCachedRateProvider wraps upstream with a cache. store may be nil.
func NewCachedRateProvider(upstream RateProvider, store RateStore, ttl time.Duration) *CachedRateProvider {
	return &CachedRateProvider{
		upstream: upstream,
		store:    store,
		cache:    NewRateCache(ttl),
	}
}

// GetExchangeRate implements RateProvider.
func (p *CachedRateProvider) GetExchangeRate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	metrics := observability.GetMetrics()

	if rate, ok := p.cache.Get(from, to); ok {
		metrics.RecordRateCacheLookup(true)
		return &rate, nil
	}

	if p.store != nil {
		rate, err := p.store.GetCachedRate(ctx, strings.ToUpper(from), strings.ToUpper(to))
		if err != nil {
			observability.Warn("failed to read persisted conversion rate",
				"from", from,
				"to", to,
				"error", err)
		} else if rate != nil {
			metrics.RecordRateCacheLookup(true)
			p.cache.Set(*rate)
			return rate, nil
		}
	}
	metrics.RecordRateCacheLookup(false)

	rate, err := p.upstream.GetExchangeRate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	p.cache.Set(*rate)
	if p.store != nil {
		if err := p.store.SetCachedRate(ctx, *rate, p.cache.TTL()); err != nil {
			observability.Warn("failed to persist conversion rate",
				"from", rate.From,
				"to", rate.To,
				"error", err)
		}
	}
	return rate, nil
}

// Refresh drops any cached copy of the pair and fetches it upstream.
func (p *CachedRateProvider) Refresh(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	p.cache.Invalidate(from, to)
	if p.store != nil {
		if err := p.store.InvalidateRate(ctx, strings.ToUpper(from), strings.ToUpper(to)); err != nil {
			observability.Warn("failed to invalidate persisted conversion rate",
				"from", from,
				"to", to,
				"error", err)
		}
	}
	return p.GetExchangeRate(ctx, from, to)
}
