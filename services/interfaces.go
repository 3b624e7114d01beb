package services

import (
	"context"
	"time"

	"cash-buying-power/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// SnapshotSource loads a consistent portfolio snapshot for an account
type SnapshotSource interface {
	Name() string
	LoadSnapshot(ctx context.Context, accountID string) (*models.Portfolio, error)
}

// RateProvider returns the value of one unit of from expressed in to
type RateProvider interface {
	GetExchangeRate(ctx context.Context, from, to string) (*models.ExchangeRate, error)
}

// RateStore persists conversion rates between restarts
type RateStore interface {
	GetCachedRate(ctx context.Context, from, to string) (*models.ExchangeRate, error)
	SetCachedRate(ctx context.Context, rate models.ExchangeRate, ttl time.Duration) error
	InvalidateRate(ctx context.Context, from, to string) error
}

// RefreshingRateProvider can bypass its cache for one lookup
type RefreshingRateProvider interface {
	RateProvider
	Refresh(ctx context.Context, from, to string) (*models.ExchangeRate, error)
}

// CashRateStore is the part of the repository that keeps stored balances
// priced at current conversion rates
type CashRateStore interface {
	GetCashBalances(ctx context.Context, accountID string) ([]models.Cash, error)
	UpdateConversionRate(ctx context.Context, rate models.ExchangeRate) error
	CleanExpiredRates(ctx context.Context) (int64, error)
}

// AlpacaBroker is the subset of Alpaca account and market data operations
// the snapshot source needs
type AlpacaBroker interface {
	GetAccount(ctx context.Context) (*alpaca.Account, error)
	GetPositions(ctx context.Context) ([]alpaca.Position, error)
	GetOpenOrders(ctx context.Context) ([]alpaca.Order, error)
	GetLatestCryptoTrades(ctx context.Context, symbols []string) (map[string]marketdata.CryptoTrade, error)
}

// InstrumentCatalog supplies static security properties
type InstrumentCatalog interface {
	models.SecurityBuilder
	Symbols() []string
}

// Compile-time interface verification
var _ RateProvider = (*AlphaVantageService)(nil)
var _ RefreshingRateProvider = (*CachedRateProvider)(nil)
var _ AlpacaBroker = (*AlpacaService)(nil)
var _ SnapshotSource = (*AlpacaSnapshotSource)(nil)
