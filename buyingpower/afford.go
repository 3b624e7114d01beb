package buyingpower

import (
	"cash-buying-power/models"

	"github.com/shopspring/decimal"
)

// CanAfford reports whether the account holds enough unreserved currency
// to execute order now.
//
// Buys are costed in quote currency (quantity × reference price), sells in
// base currency. Market orders are checked against the fee-aware maximum
// quantity; other orders against the balance net of reservations and one
// fee estimate.
func (m *CashModel) CanAfford(portfolio *models.Portfolio, security *models.Security, order *models.Order) bool {
	pair, ok := supported(portfolio, security, "can_afford")
	if !ok || order == nil {
		return false
	}

	cash := portfolio.CashBook
	direction := order.Direction()
	price := OrderPrice(security, order)

	var total, orderQuantity decimal.Decimal
	var settlement string
	switch direction {
	case models.DirectionBuy:
		settlement = pair.QuoteCurrency
		total = cash.Amount(pair.QuoteCurrency)
		orderQuantity = order.AbsoluteQuantity().Mul(price)
	case models.DirectionSell:
		settlement = pair.BaseCurrency
		total = cash.Amount(pair.BaseCurrency)
		orderQuantity = order.AbsoluteQuantity()
	default:
		return false
	}

	reserved := ReservedQuantity(portfolio, security, direction)

	if order.Type == models.OrderTypeMarket {
		var targetValue decimal.Decimal
		if direction == models.DirectionBuy {
			targetValue = cash.ConvertToAccountCurrency(total.Sub(reserved), pair.QuoteCurrency)
		} else {
			targetValue = cash.ConvertToAccountCurrency(reserved, pair.BaseCurrency)
		}

		maxQuantity := m.MaxQuantityForTargetValue(portfolio, security, targetValue)
		if direction == models.DirectionBuy {
			maxQuantity = maxQuantity.Mul(price)
		}
		return orderQuantity.LessThanOrEqual(maxQuantity.Abs())
	}

	fee := cash.Convert(security.OrderFee(order), cash.AccountCurrency, settlement)
	return orderQuantity.LessThanOrEqual(total.Sub(reserved).Sub(fee))
}
