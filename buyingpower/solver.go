package buyingpower

import (
	"cash-buying-power/models"
	"cash-buying-power/observability"

	"github.com/shopspring/decimal"
)

// MaxQuantityForTargetValue returns the largest lot-aligned quantity that
// moves the base currency holding toward targetValue (account currency)
// without exceeding the funds available or, once fees are added, the
// requested value. The result is negative for sells and zero when no
// order is possible.
func (m *CashModel) MaxQuantityForTargetValue(portfolio *models.Portfolio, security *models.Security, targetValue decimal.Decimal) decimal.Decimal {
	pair, ok := supported(portfolio, security, "max_quantity")
	if !ok {
		return decimal.Zero
	}
	if !security.LotSize.IsPositive() {
		return decimal.Zero
	}

	cash := portfolio.CashBook
	basePosition := cash.Amount(pair.BaseCurrency)
	quotePosition := cash.Amount(pair.QuoteCurrency)

	price := unitPrice(security)
	if price.IsZero() {
		return decimal.Zero
	}

	holdingsValue := basePosition.Mul(cash.ConversionRate(pair.BaseCurrency))
	targetOrderValue := targetValue.Sub(holdingsValue).Abs()

	direction := models.DirectionSell
	marginRemaining := holdingsValue
	if targetValue.GreaterThan(holdingsValue) {
		direction = models.DirectionBuy
		marginRemaining = quotePosition
	}
	if !marginRemaining.IsPositive() {
		return decimal.Zero
	}

	quantity := roundDownToLot(targetOrderValue.Div(price), security.LotSize)

	// Fees grow with order size and have no closed-form inverse, so shrink
	// the candidate until it fits. Each pass removes at least one lot.
	step := decimal.Zero
	iterations := 0
	for {
		iterations++
		quantity = quantity.Sub(step)
		if !quantity.IsPositive() {
			observability.Debug("max quantity collapsed to zero after fees",
				"symbol", security.Symbol,
				"target_value", targetValue.String(),
				"iterations", iterations)
			return decimal.Zero
		}

		order := hypotheticalOrder(security.Symbol, quantity, direction)
		orderValue := quantity.Mul(security.Price).Mul(security.QuoteCurrency.ConversionRate)
		orderFees := security.OrderFee(order)

		step = roundDownToLot(orderFees.Div(price), security.LotSize)
		if step.LessThan(security.LotSize) {
			step = security.LotSize
		}

		if orderValue.LessThanOrEqual(marginRemaining) && orderValue.Add(orderFees).LessThanOrEqual(targetOrderValue) {
			break
		}
	}

	observability.Debug("max quantity converged",
		"symbol", security.Symbol,
		"direction", string(direction),
		"quantity", quantity.String(),
		"iterations", iterations)

	if direction == models.DirectionSell {
		return quantity.Neg()
	}
	return quantity
}

// hypotheticalOrder is the market order the solver prices fees against.
func hypotheticalOrder(symbol string, quantity decimal.Decimal, direction models.Direction) *models.Order {
	if direction == models.DirectionSell {
		quantity = quantity.Neg()
	}
	return &models.Order{
		Symbol:   symbol,
		Quantity: quantity,
		Type:     models.OrderTypeMarket,
		Status:   models.OrderStatusSubmitted,
	}
}
