package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cash-buying-power/models"
	"cash-buying-power/observability"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const snapshotSourceAlpaca = "alpaca"

// AlpacaSnapshotSource builds portfolio snapshots from a live Alpaca
// account. Crypto positions become base currency balances, account cash
// becomes a balance in the account's currency and open orders keep their
// remaining quantity.
type AlpacaSnapshotSource struct {
	broker          AlpacaBroker
	catalog         InstrumentCatalog
	rates           RateProvider
	accountCurrency string
}

// NewAlpacaSnapshotSource creates a snapshot source. rates may be nil, in
// which case quote currencies other than the account currency convert at 0.
func NewAlpacaSnapshotSource(broker AlpacaBroker, catalog InstrumentCatalog, rates RateProvider, accountCurrency string) *AlpacaSnapshotSource {
	return &AlpacaSnapshotSource{
		broker:          broker,
		catalog:         catalog,
		rates:           rates,
		accountCurrency: strings.ToUpper(accountCurrency),
	}
}

// Name identifies the source in metrics and logs
func (s *AlpacaSnapshotSource) Name() string {
	return snapshotSourceAlpaca
}

// LoadSnapshot implements SnapshotSource
func (s *AlpacaSnapshotSource) LoadSnapshot(ctx context.Context, accountID string) (*models.Portfolio, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	portfolio, err := s.load(ctx, accountID)
	if err != nil {
		metrics.RecordSnapshotError(snapshotSourceAlpaca)
		return nil, err
	}

	timer.ObserveSnapshot(snapshotSourceAlpaca)
	observability.Debug("loaded alpaca snapshot",
		"account_id", accountID,
		"securities", len(portfolio.Securities),
		"orders", len(portfolio.Orders))
	return portfolio, nil
}

func (s *AlpacaSnapshotSource) load(ctx context.Context, accountID string) (*models.Portfolio, error) {
	account, err := s.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSnapshotUnavailable, err)
	}
	positions, err := s.broker.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSnapshotUnavailable, err)
	}
	brokerOrders, err := s.broker.GetOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSnapshotUnavailable, err)
	}

	symbols := s.collectSymbols(positions, brokerOrders)
	quotes, pairs, err := s.resolve(symbols)
	if err != nil {
		return nil, err
	}

	prices, err := s.latestPrices(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSnapshotUnavailable, err)
	}

	portfolio := models.NewPortfolio(accountID, s.accountCurrency)
	book := portfolio.CashBook

	cashCurrency := strings.ToUpper(account.Currency)
	if cashCurrency == "" {
		cashCurrency = s.accountCurrency
	}
	book.Set(cashCurrency, account.Cash, s.quoteRate(ctx, cashCurrency, nil))

	quoteRates := make(map[string]decimal.Decimal)
	for _, symbol := range symbols {
		quote := quotes[symbol]
		rate := s.quoteRate(ctx, quote, quoteRates)

		security, err := s.catalog.Security(symbol, quote, prices[symbol], rate)
		if err != nil {
			return nil, fmt.Errorf("failed to build security %s: %w", symbol, err)
		}
		portfolio.AddSecurity(security)

		if pair, ok := security.CurrencyPair(); ok {
			if _, known := book.Get(pair.QuoteCurrency); !known {
				book.Set(pair.QuoteCurrency, decimal.Zero, rate)
			}
			// One unit of base is worth one unit of price in quote.
			book.SetConversionRate(pair.BaseCurrency, security.Price.Mul(rate))
		}
	}

	for _, pos := range positions {
		symbol := normalizeSymbol(pos.Symbol)
		security, ok := portfolio.Security(symbol)
		if !ok {
			continue
		}
		pair, ok := security.CurrencyPair()
		if !ok {
			observability.WithSymbol(symbol).Debug("ignoring position without currency pair",
				"asset_class", string(pos.AssetClass))
			continue
		}
		current, _ := book.Get(pair.BaseCurrency)
		book.Set(pair.BaseCurrency, current.Amount.Add(pos.Qty), current.ConversionRate)
	}

	for i := range brokerOrders {
		if order, ok := convertOrder(&brokerOrders[i]); ok {
			portfolio.Orders = append(portfolio.Orders, order)
		}
	}

	return portfolio, nil
}

// collectSymbols returns the union of catalog, position and order symbols
// in sorted order.
func (s *AlpacaSnapshotSource) collectSymbols(positions []alpaca.Position, orders []alpaca.Order) []string {
	seen := make(map[string]struct{})
	for _, symbol := range s.catalog.Symbols() {
		seen[normalizeSymbol(symbol)] = struct{}{}
	}
	for _, pos := range positions {
		seen[normalizeSymbol(pos.Symbol)] = struct{}{}
	}
	for _, o := range orders {
		seen[normalizeSymbol(o.Symbol)] = struct{}{}
	}

	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// resolve looks up the quote currency of every symbol and the currency
// pair of those the catalog lists as pairs.
func (s *AlpacaSnapshotSource) resolve(symbols []string) (map[string]string, map[string]models.CurrencyPair, error) {
	quotes := make(map[string]string, len(symbols))
	pairs := make(map[string]models.CurrencyPair)
	for _, symbol := range symbols {
		probe, err := s.catalog.Security(symbol, "", decimal.Zero, decimal.Zero)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve instrument %s: %w", symbol, err)
		}
		quotes[symbol] = probe.QuoteCurrency.Code
		if pair, ok := probe.CurrencyPair(); ok {
			pairs[symbol] = pair
		}
	}
	return quotes, pairs, nil
}

// latestPrices fetches the last trade price of every pair. Pairs without a
// trade are left out and evaluate at price zero.
func (s *AlpacaSnapshotSource) latestPrices(ctx context.Context, pairs map[string]models.CurrencyPair) (map[string]decimal.Decimal, error) {
	request := make([]string, 0, len(pairs))
	bySlashed := make(map[string]string, len(pairs))
	for symbol, pair := range pairs {
		slashed := pair.BaseCurrency + "/" + pair.QuoteCurrency
		request = append(request, slashed)
		bySlashed[slashed] = symbol
	}
	sort.Strings(request)

	trades, err := s.broker.GetLatestCryptoTrades(ctx, request)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(trades))
	for slashed, trade := range trades {
		symbol, ok := bySlashed[slashed]
		if !ok {
			symbol = normalizeSymbol(slashed)
		}
		prices[symbol] = decimal.NewFromFloat(trade.Price)
	}
	return prices, nil
}

// quoteRate returns the account currency value of one unit of currency.
// Rates that cannot be sourced are zero so the model returns its
// sentinels instead of failing the snapshot.
func (s *AlpacaSnapshotSource) quoteRate(ctx context.Context, currency string, memo map[string]decimal.Decimal) decimal.Decimal {
	if currency == "" {
		return decimal.Zero
	}
	if currency == s.accountCurrency {
		return decimal.NewFromInt(1)
	}
	if rate, ok := memo[currency]; ok {
		return rate
	}

	rate := decimal.Zero
	if s.rates != nil {
		r, err := s.rates.GetExchangeRate(ctx, currency, s.accountCurrency)
		if err != nil {
			observability.Warn("conversion rate unavailable",
				"from", currency,
				"to", s.accountCurrency,
				"error", err)
		} else {
			rate = r.Rate
		}
	}
	if memo != nil {
		memo[currency] = rate
	}
	return rate
}

// normalizeSymbol maps Alpaca crypto symbols (BTC/USD) to catalog form (BTCUSD).
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// convertOrder maps a working Alpaca order onto the model's order. Orders
// sized by notional or of unsupported types are skipped.
func convertOrder(o *alpaca.Order) (*models.Order, bool) {
	if o.Qty == nil {
		observability.Debug("skipping notional order", "order_id", o.ID, "symbol", o.Symbol)
		return nil, false
	}

	remaining := o.Qty.Sub(o.FilledQty)
	if !remaining.IsPositive() {
		return nil, false
	}
	if o.Side == alpaca.Sell {
		remaining = remaining.Neg()
	}

	symbol := normalizeSymbol(o.Symbol)
	var order *models.Order
	switch o.Type {
	case alpaca.Market:
		order = models.NewMarketOrder(symbol, remaining)
	case alpaca.Limit:
		order = models.NewLimitOrder(symbol, remaining, derefDecimal(o.LimitPrice))
	case alpaca.Stop:
		order = models.NewStopMarketOrder(symbol, remaining, derefDecimal(o.StopPrice))
	case alpaca.StopLimit:
		order = models.NewStopLimitOrder(symbol, remaining, derefDecimal(o.StopPrice), derefDecimal(o.LimitPrice))
	default:
		observability.Debug("skipping unsupported order type",
			"order_id", o.ID,
			"type", string(o.Type))
		return nil, false
	}

	if id, err := uuid.Parse(o.ID); err == nil {
		order.ID = id
	}
	if o.FilledQty.IsPositive() {
		order.Status = models.OrderStatusPartiallyFilled
	}
	return order, true
}

func derefDecimal(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
