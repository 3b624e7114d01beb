package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cash-buying-power/buyingpower"
	"cash-buying-power/config"
	"cash-buying-power/models"
	"cash-buying-power/observability"
	"cash-buying-power/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrBusy is returned when every evaluation slot is taken
	ErrBusy = errors.New("too many concurrent evaluations, try again later")
	// ErrDatabaseUnavailable is returned by operations that need the repository
	ErrDatabaseUnavailable = errors.New("database not initialized")
	// ErrReadOnlySource is returned when writing to a snapshot the service does not own
	ErrReadOnlySource = errors.New("snapshot source is read-only")
	// ErrInvalidInput marks malformed request values
	ErrInvalidInput = errors.New("invalid input")
)

// RepositoryInterface defines the repository operations needed by App
type RepositoryInterface interface {
	Close()
	Health(ctx context.Context) error
	GetCashBalances(ctx context.Context, accountID string) ([]models.Cash, error)
	UpsertCashBalance(ctx context.Context, accountID string, cash models.Cash) error
	UpsertSecurityPrice(ctx context.Context, price *models.SecurityPrice) error
	GetOrders(ctx context.Context, accountID string, openOnly bool, limit int) ([]*models.Order, error)
	CreateOrder(ctx context.Context, accountID string, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, accountID string, id uuid.UUID, status models.OrderStatus) (bool, error)
	CreateEvaluation(ctx context.Context, eval *models.Evaluation) error
	GetEvaluations(ctx context.Context, accountID string, limit int) ([]models.Evaluation, error)
}

// App answers buying power queries against snapshots loaded from a
// SnapshotSource and keeps the bookkeeping a Postgres-backed snapshot needs
type App struct {
	cfg        *config.Config
	repo       RepositoryInterface
	source     services.SnapshotSource
	rates      services.RateProvider
	securities models.SecurityBuilder
	model      buyingpower.Model
	evalSem    chan struct{}
}

// New creates a new App. repo and rates may be nil.
func New(cfg *config.Config, repo RepositoryInterface, source services.SnapshotSource, rates services.RateProvider, securities models.SecurityBuilder) *App {
	return &App{
		cfg:        cfg,
		repo:       repo,
		source:     source,
		rates:      rates,
		securities: securities,
		model:      buyingpower.NewCashModel(),
		evalSem:    make(chan struct{}, cfg.Evaluation.ConcurrencyLimit),
	}
}

// Shutdown releases the repository
func (a *App) Shutdown() {
	if a.repo != nil {
		a.repo.Close()
	}
}

// AccountID is the account every query is evaluated against
func (a *App) AccountID() string {
	return a.cfg.Account.ID
}

// Health reports whether the backing database, if any, is reachable
func (a *App) Health(ctx context.Context) error {
	if a.repo == nil {
		return nil
	}
	return a.repo.Health(ctx)
}

// EvaluationSemCapacity returns the capacity of the evaluation semaphore (for testing)
func (a *App) EvaluationSemCapacity() int {
	return cap(a.evalSem)
}

// OrderRequest describes a hypothetical or new order
type OrderRequest struct {
	Symbol     string           `json:"symbol"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Type       models.OrderType `json:"type"`
	LimitPrice decimal.Decimal  `json:"limit_price"`
	StopPrice  decimal.Decimal  `json:"stop_price"`
}

// Order builds the order the request describes
func (r OrderRequest) Order() *models.Order {
	symbol := strings.ToUpper(strings.TrimSpace(r.Symbol))
	orderType := r.Type
	if orderType == "" {
		orderType = models.OrderTypeMarket
	}

	switch orderType {
	case models.OrderTypeLimit:
		return models.NewLimitOrder(symbol, r.Quantity, r.LimitPrice)
	case models.OrderTypeStopMarket:
		return models.NewStopMarketOrder(symbol, r.Quantity, r.StopPrice)
	case models.OrderTypeStopLimit:
		return models.NewStopLimitOrder(symbol, r.Quantity, r.StopPrice, r.LimitPrice)
	case models.OrderTypeMarket:
		return models.NewMarketOrder(symbol, r.Quantity)
	default:
		o := models.NewMarketOrder(symbol, r.Quantity)
		o.Type = orderType
		return o
	}
}

func (r OrderRequest) input() map[string]interface{} {
	return map[string]interface{}{
		"quantity":    r.Quantity.String(),
		"type":        string(r.Type),
		"limit_price": r.LimitPrice.String(),
		"stop_price":  r.StopPrice.String(),
	}
}

// BuyingPower is the answer to an available buying power query
type BuyingPower struct {
	Symbol    string           `json:"symbol"`
	Direction models.Direction `json:"direction"`
	Available decimal.Decimal  `json:"available"`
	Reserved  decimal.Decimal  `json:"reserved_by_open_orders"`
}

// CashSummary lists every balance of the account and its total value
type CashSummary struct {
	AccountCurrency string          `json:"account_currency"`
	Balances        []models.Cash   `json:"balances"`
	TotalValue      decimal.Decimal `json:"total_value"`
}

// evaluate loads a snapshot, resolves symbol and runs fn against them.
// fn returns the result string recorded in the audit log.
func (a *App) evaluate(ctx context.Context, op models.EvaluationOperation, symbol string, input map[string]interface{}, fn func(p *models.Portfolio, s *models.Security) string) error {
	select {
	case a.evalSem <- struct{}{}:
		defer func() { <-a.evalSem }()
	default:
		return ErrBusy
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	eval := models.NewEvaluation(a.cfg.Account.ID, op, symbol, input)

	result, err := a.runEvaluation(ctx, symbol, fn)
	if err != nil {
		timer.ObserveEvaluation(string(op), resultLabel(err))
		eval.Fail(err)
	} else {
		timer.ObserveEvaluation(string(op), "ok")
		eval.Complete(result)
	}
	a.record(ctx, eval)

	return err
}

func (a *App) runEvaluation(ctx context.Context, symbol string, fn func(p *models.Portfolio, s *models.Security) string) (string, error) {
	if symbol == "" {
		return "", fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}

	portfolio, err := a.source.LoadSnapshot(ctx, a.cfg.Account.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load snapshot: %w", err)
	}

	security, ok := portfolio.Security(symbol)
	if !ok {
		return "", fmt.Errorf("%w: %s", models.ErrSecurityNotFound, symbol)
	}

	return fn(portfolio, security), nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, models.ErrSecurityNotFound), errors.Is(err, models.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, models.ErrInvalidOrder):
		return "invalid"
	default:
		return "error"
	}
}

// record writes the audit entry. Failures are logged, never surfaced.
func (a *App) record(ctx context.Context, eval *models.Evaluation) {
	if a.repo == nil {
		return
	}
	if err := a.repo.CreateEvaluation(ctx, eval); err != nil {
		observability.WithAccount(eval.AccountID).Warn("failed to record evaluation",
			"operation", string(eval.Operation),
			"symbol", eval.Symbol,
			"error", err)
	}
}

// Leverage returns the leverage applied to symbol
func (a *App) Leverage(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var leverage decimal.Decimal
	err := a.evaluate(ctx, models.OperationLeverage, symbol, nil, func(_ *models.Portfolio, s *models.Security) string {
		leverage = a.model.Leverage(s)
		return leverage.String()
	})
	return leverage, err
}

// SetLeverage accepts a leverage change for symbol. Cash accounts ignore it.
func (a *App) SetLeverage(ctx context.Context, symbol string, leverage decimal.Decimal) error {
	if !leverage.IsPositive() {
		return fmt.Errorf("%w: leverage must be positive", ErrInvalidInput)
	}
	input := map[string]interface{}{"leverage": leverage.String()}
	return a.evaluate(ctx, models.OperationSetLeverage, symbol, input, func(_ *models.Portfolio, s *models.Security) string {
		a.model.SetLeverage(s, leverage)
		return a.model.Leverage(s).String()
	})
}

// CanAfford reports whether the account can pay for the described order
// on top of every open order already claiming the same currency
func (a *App) CanAfford(ctx context.Context, req OrderRequest) (bool, error) {
	order := req.Order()
	if !order.Quantity.IsZero() {
		if err := order.Validate(); err != nil {
			return false, err
		}
	}

	var affordable bool
	err := a.evaluate(ctx, models.OperationCanAfford, order.Symbol, req.input(), func(p *models.Portfolio, s *models.Security) string {
		affordable = a.model.CanAfford(p, s, order)
		return fmt.Sprintf("%t", affordable)
	})
	return affordable, err
}

// MaxQuantity returns the signed lot-aligned quantity that moves the
// holding of symbol toward targetValue, fees included
func (a *App) MaxQuantity(ctx context.Context, symbol string, targetValue decimal.Decimal) (decimal.Decimal, error) {
	quantity := decimal.Zero
	input := map[string]interface{}{"target_value": targetValue.String()}
	err := a.evaluate(ctx, models.OperationMaxQuantity, symbol, input, func(p *models.Portfolio, s *models.Security) string {
		quantity = a.model.MaxQuantityForTargetValue(p, s, targetValue)
		return quantity.String()
	})
	return quantity, err
}

// AvailableBuyingPower returns the units of symbol the account could buy
// or sell in direction, along with what open orders have already claimed
func (a *App) AvailableBuyingPower(ctx context.Context, symbol string, direction models.Direction) (*BuyingPower, error) {
	if direction != models.DirectionBuy && direction != models.DirectionSell {
		return nil, fmt.Errorf("%w: direction must be buy or sell", ErrInvalidInput)
	}

	var bp *BuyingPower
	input := map[string]interface{}{"direction": string(direction)}
	err := a.evaluate(ctx, models.OperationAvailableBuyingPower, symbol, input, func(p *models.Portfolio, s *models.Security) string {
		bp = &BuyingPower{
			Symbol:    s.Symbol,
			Direction: direction,
			Available: a.model.AvailableBuyingPower(p, s, direction),
			Reserved:  buyingpower.ReservedQuantity(p, s, direction),
		}
		return bp.Available.String()
	})
	if err != nil {
		return nil, err
	}
	return bp, nil
}

// ReservedForPosition returns the buying power an open position of symbol holds back
func (a *App) ReservedForPosition(ctx context.Context, symbol string) (decimal.Decimal, error) {
	reserved := decimal.Zero
	err := a.evaluate(ctx, models.OperationReservedForPosition, symbol, nil, func(_ *models.Portfolio, s *models.Security) string {
		reserved = a.model.ReservedBuyingPowerForPosition(s)
		return reserved.String()
	})
	return reserved, err
}

// GetCash returns every balance of the account from a fresh snapshot
func (a *App) GetCash(ctx context.Context) (*CashSummary, error) {
	portfolio, err := a.source.LoadSnapshot(ctx, a.cfg.Account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &CashSummary{
		AccountCurrency: portfolio.CashBook.AccountCurrency,
		Balances:        portfolio.CashBook.Entries(),
		TotalValue:      portfolio.CashBook.TotalValue(),
	}, nil
}

// writable reports whether bookkeeping writes reach the snapshot source
func (a *App) writable() error {
	if a.repo == nil {
		return ErrDatabaseUnavailable
	}
	if a.cfg.Account.SnapshotSource != config.SnapshotSourcePostgres {
		return fmt.Errorf("%w: %s", ErrReadOnlySource, a.cfg.Account.SnapshotSource)
	}
	return nil
}

// SetCash stores a balance. A nil rate is sourced from the rate provider,
// then from the stored balance; the account currency always converts at 1.
func (a *App) SetCash(ctx context.Context, currency string, amount decimal.Decimal, rate *decimal.Decimal) (*models.Cash, error) {
	if err := a.writable(); err != nil {
		return nil, err
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) < 3 {
		return nil, fmt.Errorf("%w: currency code %q", ErrInvalidInput, currency)
	}
	if rate != nil && rate.IsNegative() {
		return nil, fmt.Errorf("%w: conversion rate must not be negative", ErrInvalidInput)
	}

	cash := models.Cash{Currency: currency, Amount: amount}
	switch {
	case currency == a.cfg.Account.Currency:
		cash.ConversionRate = decimal.NewFromInt(1)
	case rate != nil:
		cash.ConversionRate = *rate
	default:
		r, err := a.lookupRate(ctx, currency)
		if err != nil {
			return nil, err
		}
		cash.ConversionRate = r
	}

	if err := a.repo.UpsertCashBalance(ctx, a.cfg.Account.ID, cash); err != nil {
		return nil, err
	}
	return &cash, nil
}

func (a *App) lookupRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	if a.rates != nil {
		r, err := a.rates.GetExchangeRate(ctx, currency, a.cfg.Account.Currency)
		if err == nil {
			return r.Rate, nil
		}
		observability.Warn("conversion rate lookup failed, keeping stored rate",
			"currency", currency,
			"error", err)
	}

	balances, err := a.repo.GetCashBalances(ctx, a.cfg.Account.ID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range balances {
		if b.Currency == currency {
			return b.ConversionRate, nil
		}
	}
	return decimal.Zero, nil
}

// SetPrice stores the market price of symbol. An empty quote currency is
// taken from the instrument catalog and one that conflicts with it is
// rejected.
func (a *App) SetPrice(ctx context.Context, symbol, quote string, price decimal.Decimal) (*models.SecurityPrice, error) {
	if err := a.writable(); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidInput)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if a.securities != nil {
		probe, err := a.securities.Security(symbol, quote, decimal.Zero, decimal.Zero)
		if err != nil {
			return nil, err
		}
		if quote != "" && probe.QuoteCurrency.Code != quote {
			return nil, fmt.Errorf("%w: %s is quoted in %s, not %s", ErrInvalidInput, symbol, probe.QuoteCurrency.Code, quote)
		}
		quote = probe.QuoteCurrency.Code
	}
	if quote == "" {
		return nil, fmt.Errorf("%w: quote currency is required for %s", ErrInvalidInput, symbol)
	}

	sp := &models.SecurityPrice{Symbol: symbol, QuoteCurrency: quote, Price: price}
	if err := a.repo.UpsertSecurityPrice(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// CreateOrder records a new open order
func (a *App) CreateOrder(ctx context.Context, req OrderRequest) (*models.Order, error) {
	if err := a.writable(); err != nil {
		return nil, err
	}

	order := req.Order()
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := a.repo.CreateOrder(ctx, a.cfg.Account.ID, order); err != nil {
		return nil, err
	}

	observability.Info("order recorded",
		"order_id", order.ID.String(),
		"symbol", order.Symbol,
		"type", string(order.Type))
	return order, nil
}

// ListOrders returns recent orders, optionally only those still open
func (a *App) ListOrders(ctx context.Context, openOnly bool, limit int) ([]*models.Order, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	return a.repo.GetOrders(ctx, a.cfg.Account.ID, openOnly, limit)
}

// CancelOrder marks an open order cancelled
func (a *App) CancelOrder(ctx context.Context, id string) error {
	return a.closeOrder(ctx, id, models.OrderStatusCancelled)
}

// FillOrder marks an open order filled
func (a *App) FillOrder(ctx context.Context, id string) error {
	return a.closeOrder(ctx, id, models.OrderStatusFilled)
}

func (a *App) closeOrder(ctx context.Context, id string, status models.OrderStatus) error {
	if err := a.writable(); err != nil {
		return err
	}

	orderID, err := ParseUUID(id)
	if err != nil {
		return err
	}

	updated, err := a.repo.UpdateOrderStatus(ctx, a.cfg.Account.ID, orderID, status)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("%w: %s", models.ErrOrderNotFound, id)
	}
	return nil
}

// GetEvaluations returns recent audit entries
func (a *App) GetEvaluations(ctx context.Context, limit int) ([]models.Evaluation, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	return a.repo.GetEvaluations(ctx, a.cfg.Account.ID, limit)
}

// ParseUUID parses a string UUID
func ParseUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid UUID: %v", ErrInvalidInput, err)
	}
	return parsed, nil
}
