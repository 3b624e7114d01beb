package buyingpower

import (
	"cash-buying-power/models"

	"github.com/shopspring/decimal"
)

// OrderPrice returns the reference price used to cost an order: the
// security's market price for market orders, otherwise the order's own
// limit or stop price. Unknown order types price at zero.
func OrderPrice(security *models.Security, order *models.Order) decimal.Decimal {
	switch order.Type {
	case models.OrderTypeMarket:
		return security.Price
	case models.OrderTypeLimit:
		return order.LimitPrice
	case models.OrderTypeStopMarket:
		return order.StopPrice
	case models.OrderTypeStopLimit:
		return order.LimitPrice
	default:
		return decimal.Zero
	}
}
