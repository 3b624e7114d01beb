// Package buyingpower decides whether an unleveraged cash account can
// afford an order and sizes orders against a target position value.
//
// Every function is a read-only query over a models.Portfolio snapshot.
// Nothing here locks: callers must keep the snapshot stable for the
// duration of a call. Unsupported inputs produce sentinel results
// (false or zero) instead of errors.
package buyingpower

import (
	"cash-buying-power/models"
	"cash-buying-power/observability"

	"github.com/shopspring/decimal"
)

// Model is the buying power capability set exposed to order pipelines.
type Model interface {
	Leverage(security *models.Security) decimal.Decimal
	SetLeverage(security *models.Security, leverage decimal.Decimal)
	CanAfford(portfolio *models.Portfolio, security *models.Security, order *models.Order) bool
	MaxQuantityForTargetValue(portfolio *models.Portfolio, security *models.Security, targetValue decimal.Decimal) decimal.Decimal
	ReservedBuyingPowerForPosition(security *models.Security) decimal.Decimal
	AvailableBuyingPower(portfolio *models.Portfolio, security *models.Security, direction models.Direction) decimal.Decimal
}

// CashModel is the buying power model for cash accounts: leverage is 1 and
// only currency-pair securities are supported.
type CashModel struct{}

// NewCashModel creates a CashModel.
func NewCashModel() *CashModel {
	return &CashModel{}
}

var _ Model = (*CashModel)(nil)

var one = decimal.NewFromInt(1)

// Leverage is always 1, including for securities without a currency pair.
func (m *CashModel) Leverage(_ *models.Security) decimal.Decimal {
	return one
}

// SetLeverage does nothing; cash accounts cannot hold leverage.
func (m *CashModel) SetLeverage(_ *models.Security, _ decimal.Decimal) {}

// ReservedBuyingPowerForPosition is always zero: a cash position is fully
// paid for.
func (m *CashModel) ReservedBuyingPowerForPosition(_ *models.Security) decimal.Decimal {
	return decimal.Zero
}

// AvailableBuyingPower returns the units purchasable with the quote
// currency balance (Buy) or the units of base currency held (Sell).
func (m *CashModel) AvailableBuyingPower(portfolio *models.Portfolio, security *models.Security, direction models.Direction) decimal.Decimal {
	pair, ok := supported(portfolio, security, "available_buying_power")
	if !ok {
		return decimal.Zero
	}

	price := unitPrice(security)
	if price.IsZero() {
		return decimal.Zero
	}

	switch direction {
	case models.DirectionBuy:
		return portfolio.CashBook.Amount(pair.QuoteCurrency).Div(price)
	case models.DirectionSell:
		return portfolio.CashBook.Amount(pair.BaseCurrency)
	default:
		return decimal.Zero
	}
}

// unitPrice is the price of one unit: the market price divided by the
// quote currency conversion rate. Zero when either is unusable.
func unitPrice(security *models.Security) decimal.Decimal {
	rate := security.QuoteCurrency.ConversionRate
	if rate.IsZero() || !security.Price.IsPositive() {
		return decimal.Zero
	}
	return security.Price.Div(rate)
}

// roundDownToLot discards the remainder of quantity / lotSize.
func roundDownToLot(quantity, lotSize decimal.Decimal) decimal.Decimal {
	return quantity.Sub(quantity.Mod(lotSize))
}

// supported returns the security's currency pair when both it and the
// snapshot can be evaluated.
func supported(portfolio *models.Portfolio, security *models.Security, op string) (models.CurrencyPair, bool) {
	pair, ok := security.CurrencyPair()
	if ok && portfolio != nil && portfolio.CashBook != nil {
		return pair, true
	}

	symbol := ""
	if security != nil {
		symbol = security.Symbol
	}
	observability.Debug("unsupported security or snapshot, returning sentinel",
		"symbol", symbol,
		"operation", op)
	return models.CurrencyPair{}, false
}
