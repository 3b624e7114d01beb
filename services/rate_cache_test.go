package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cash-buying-power/models"

	"github.com/shopspring/decimal"
)

type fakeRateProvider struct {
	rates map[string]decimal.Decimal
	err   error
	calls int
}

func (f *fakeRateProvider) GetExchangeRate(_ context.Context, from, to string) (*models.ExchangeRate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rate, ok := f.rates[rateKey(from, to)]
	if !ok {
		return nil, errors.New("unknown pair " + rateKey(from, to))
	}
	return &models.ExchangeRate{From: from, To: to, Rate: rate, FetchedAt: time.Now()}, nil
}

type fakeRateStore struct {
	rates   map[string]models.ExchangeRate
	getErr  error
	setTTL  time.Duration
	setHits int

	invalidated int
}

func (f *fakeRateStore) GetCachedRate(_ context.Context, from, to string) (*models.ExchangeRate, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	rate, ok := f.rates[rateKey(from, to)]
	if !ok {
		return nil, nil
	}
	return &rate, nil
}

func (f *fakeRateStore) InvalidateRate(_ context.Context, from, to string) error {
	f.invalidated++
	delete(f.rates, rateKey(from, to))
	return nil
}

func (f *fakeRateStore) SetCachedRate(_ context.Context, rate models.ExchangeRate, ttl time.Duration) error {
	f.setHits++
	f.setTTL = ttl
	f.rates[rateKey(rate.From, rate.To)] = rate
	return nil
}

func TestRateCache_GetSet(t *testing.T) {
	cache := NewRateCache(time.Minute)

	if _, ok := cache.Get("EUR", "USD"); ok {
		t.Error("empty cache should miss")
	}

	cache.Set(models.ExchangeRate{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.1")})

	rate, ok := cache.Get("eur", "usd")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if !rate.Rate.Equal(decimal.RequireFromString("1.1")) {
		t.Errorf("Rate = %v, want 1.1", rate.Rate)
	}
	if _, ok := cache.Get("USD", "EUR"); ok {
		t.Error("reverse pair should miss")
	}
}

func TestRateCache_Expiry(t *testing.T) {
	cache := NewRateCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set(models.ExchangeRate{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.1")})

	cache.now = func() time.Time { return now.Add(59 * time.Second) }
	if _, ok := cache.Get("EUR", "USD"); !ok {
		t.Error("expected hit within TTL")
	}

	cache.now = func() time.Time { return now.Add(time.Minute) }
	if _, ok := cache.Get("EUR", "USD"); ok {
		t.Error("expected miss once TTL elapsed")
	}
}

func TestRateCache_Invalidate(t *testing.T) {
	cache := NewRateCache(time.Minute)
	cache.Set(models.ExchangeRate{From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.1")})
	cache.Invalidate("EUR", "USD")

	if _, ok := cache.Get("EUR", "USD"); ok {
		t.Error("expected miss after Invalidate")
	}
}

func TestNewRateCache_DefaultTTL(t *testing.T) {
	if got := NewRateCache(0).TTL(); got != DefaultRateCacheTTL {
		t.Errorf("TTL() = %v, want %v", got, DefaultRateCacheTTL)
	}
}

func TestCachedRateProvider_CachesUpstream(t *testing.T) {
	upstream := &fakeRateProvider{rates: map[string]decimal.Decimal{"EUR/USD": decimal.RequireFromString("1.1")}}
	provider := NewCachedRateProvider(upstream, nil, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rate, err := provider.GetExchangeRate(ctx, "EUR", "USD")
		if err != nil {
			t.Fatalf("GetExchangeRate() error = %v", err)
		}
		if !rate.Rate.Equal(decimal.RequireFromString("1.1")) {
			t.Errorf("Rate = %v, want 1.1", rate.Rate)
		}
	}

	if upstream.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", upstream.calls)
	}
}

func TestCachedRateProvider_UsesStoreBeforeUpstream(t *testing.T) {
	upstream := &fakeRateProvider{}
	store := &fakeRateStore{rates: map[string]models.ExchangeRate{
		"GBP/USD": {From: "GBP", To: "USD", Rate: decimal.RequireFromString("1.27")},
	}}
	provider := NewCachedRateProvider(upstream, store, time.Minute)

	rate, err := provider.GetExchangeRate(context.Background(), "GBP", "USD")
	if err != nil {
		t.Fatalf("GetExchangeRate() error = %v", err)
	}
	if !rate.Rate.Equal(decimal.RequireFromString("1.27")) {
		t.Errorf("Rate = %v, want 1.27", rate.Rate)
	}
	if upstream.calls != 0 {
		t.Errorf("upstream calls = %d, want 0", upstream.calls)
	}
}

func TestCachedRateProvider_PersistsUpstreamRate(t *testing.T) {
	upstream := &fakeRateProvider{rates: map[string]decimal.Decimal{"EUR/USD": decimal.RequireFromString("1.1")}}
	store := &fakeRateStore{rates: map[string]models.ExchangeRate{}}
	provider := NewCachedRateProvider(upstream, store, 2*time.Minute)

	if _, err := provider.GetExchangeRate(context.Background(), "EUR", "USD"); err != nil {
		t.Fatalf("GetExchangeRate() error = %v", err)
	}

	if store.setHits != 1 {
		t.Errorf("store writes = %d, want 1", store.setHits)
	}
	if store.setTTL != 2*time.Minute {
		t.Errorf("store TTL = %v, want 2m", store.setTTL)
	}
}

func TestCachedRateProvider_StoreErrorFallsThrough(t *testing.T) {
	upstream := &fakeRateProvider{rates: map[string]decimal.Decimal{"EUR/USD": decimal.RequireFromString("1.1")}}
	store := &fakeRateStore{rates: map[string]models.ExchangeRate{}, getErr: errors.New("db down")}
	provider := NewCachedRateProvider(upstream, store, time.Minute)

	rate, err := provider.GetExchangeRate(context.Background(), "EUR", "USD")
	if err != nil {
		t.Fatalf("GetExchangeRate() error = %v", err)
	}
	if !rate.Rate.Equal(decimal.RequireFromString("1.1")) {
		t.Errorf("Rate = %v, want 1.1", rate.Rate)
	}
}

func TestCachedRateProvider_UpstreamError(t *testing.T) {
	upstream := &fakeRateProvider{err: errors.New("unavailable")}
	provider := NewCachedRateProvider(upstream, nil, time.Minute)

	if _, err := provider.GetExchangeRate(context.Background(), "EUR", "USD"); err == nil {
		t.Error("expected upstream error")
	}
	if _, ok := provider.cache.Get("EUR", "USD"); ok {
		t.Error("failed lookups must not be cached")
	}
}

func TestCachedRateProvider_RefreshBypassesCaches(t *testing.T) {
	upstream := &fakeRateProvider{rates: map[string]decimal.Decimal{"EUR/USD": decimal.RequireFromString("1.1")}}
	store := &fakeRateStore{rates: map[string]models.ExchangeRate{}}
	p := NewCachedRateProvider(upstream, store, time.Minute)
	ctx := context.Background()

	if _, err := p.GetExchangeRate(ctx, "EUR", "USD"); err != nil {
		t.Fatalf("GetExchangeRate() error = %v", err)
	}
	upstream.rates["EUR/USD"] = decimal.RequireFromString("1.2")

	rate, err := p.Refresh(ctx, "EUR", "USD")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !rate.Rate.Equal(decimal.RequireFromString("1.2")) {
		t.Errorf("Refresh() rate = %v, want 1.2", rate.Rate)
	}
	if upstream.calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", upstream.calls)
	}
	if store.invalidated != 1 {
		t.Errorf("expected store invalidation, got %d", store.invalidated)
	}

	cached, _ := p.GetExchangeRate(ctx, "EUR", "USD")
	if !cached.Rate.Equal(decimal.RequireFromString("1.2")) {
		t.Errorf("cached rate = %v, want 1.2", cached.Rate)
	}
}
