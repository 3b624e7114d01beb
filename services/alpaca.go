package services

import (
	"context"
	"fmt"

	"cash-buying-power/observability"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// alpacaTradeClient is the subset of *alpaca.Client used here
type alpacaTradeClient interface {
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
	GetOrders(req alpaca.GetOrdersRequest) ([]alpaca.Order, error)
}

// alpacaDataClient is the subset of *marketdata.Client used here
type alpacaDataClient interface {
	GetLatestCryptoTrades(symbols []string, req marketdata.GetLatestCryptoTradeRequest) (map[string]marketdata.CryptoTrade, error)
}

// AlpacaService handles communication with Alpaca for account state and
// crypto market data
type AlpacaService struct {
	tradeClient alpacaTradeClient
	dataClient  alpacaDataClient
}

// NewAlpacaService creates a new AlpacaService instance
func NewAlpacaService(apiKey, apiSecret, baseURL string) *AlpacaService {
	tradeClient := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return &AlpacaService{
		tradeClient: tradeClient,
		dataClient:  dataClient,
	}
}

// callAlpaca runs fn through the Alpaca circuit breaker and records
// external API metrics for operation
func callAlpaca[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, operation)
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerAlpaca, fn)

	timer.ObserveExternalAPI(BreakerAlpaca, operation)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, operation, categorizeAPIError(err))
	}
	return result, err
}

// GetAccount returns the current account information
func (s *AlpacaService) GetAccount(ctx context.Context) (*alpaca.Account, error) {
	account, err := callAlpaca(ctx, "get_account", func() (*alpaca.Account, error) {
		return s.tradeClient.GetAccount()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// GetPositions returns all current positions
func (s *AlpacaService) GetPositions(ctx context.Context) ([]alpaca.Position, error) {
	positions, err := callAlpaca(ctx, "get_positions", func() ([]alpaca.Position, error) {
		return s.tradeClient.GetPositions()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	return positions, nil
}

// GetOpenOrders returns every order that is still working
func (s *AlpacaService) GetOpenOrders(ctx context.Context) ([]alpaca.Order, error) {
	orders, err := callAlpaca(ctx, "get_open_orders", func() ([]alpaca.Order, error) {
		return s.tradeClient.GetOrders(alpaca.GetOrdersRequest{
			Status: "open",
			Limit:  500,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}
	return orders, nil
}

// GetLatestCryptoTrades returns the latest trade for each crypto pair,
// keyed by the requested BASE/QUOTE symbol
func (s *AlpacaService) GetLatestCryptoTrades(ctx context.Context, symbols []string) (map[string]marketdata.CryptoTrade, error) {
	if len(symbols) == 0 {
		return map[string]marketdata.CryptoTrade{}, nil
	}

	trades, err := callAlpaca(ctx, "latest_crypto_trades", func() (map[string]marketdata.CryptoTrade, error) {
		return s.dataClient.GetLatestCryptoTrades(symbols, marketdata.GetLatestCryptoTradeRequest{})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get latest crypto trades: %w", err)
	}
	return trades, nil
}
