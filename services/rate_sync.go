package services

import (
	"context"
	"strings"
	"time"

	"cash-buying-power/observability"
)

// RateSyncer periodically re-prices stored cash balances held in foreign
// currencies and purges expired rate cache rows.
type RateSyncer struct {
	rates           RefreshingRateProvider
	store           CashRateStore
	accountID       string
	accountCurrency string
	interval        time.Duration
}

// NewRateSyncer creates a RateSyncer. A non-positive interval uses
// DefaultRateCacheTTL.
func NewRateSyncer(rates RefreshingRateProvider, store CashRateStore, accountID, accountCurrency string, interval time.Duration) *RateSyncer {
	if interval <= 0 {
		interval = DefaultRateCacheTTL
	}
	return &RateSyncer{
		rates:           rates,
		store:           store,
		accountID:       accountID,
		accountCurrency: strings.ToUpper(accountCurrency),
		interval:        interval,
	}
}

// Run syncs once immediately and then on every interval until ctx is done.
func (s *RateSyncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SyncOnce(ctx); err != nil {
			observability.Warn("conversion rate sync failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SyncOnce refreshes the rate of every foreign currency the account holds
// and returns how many balances were re-priced. Currencies whose rate
// cannot be fetched keep their stored rate.
func (s *RateSyncer) SyncOnce(ctx context.Context) (int, error) {
	balances, err := s.store.GetCashBalances(ctx, s.accountID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, cash := range balances {
		if cash.Currency == s.accountCurrency {
			continue
		}
		rate, err := s.rates.Refresh(ctx, cash.Currency, s.accountCurrency)
		if err != nil {
			observability.WithError(err).Warn("keeping stored conversion rate",
				"currency", cash.Currency)
			continue
		}
		if err := s.store.UpdateConversionRate(ctx, *rate); err != nil {
			return updated, err
		}
		updated++
	}

	removed, err := s.store.CleanExpiredRates(ctx)
	if err != nil {
		return updated, err
	}

	observability.Debug("conversion rates synced",
		"account_id", s.accountID,
		"updated", updated,
		"expired_removed", removed)
	return updated, nil
}
