package buyingpower

import (
	"cash-buying-power/models"

	"github.com/shopspring/decimal"
)

// ReservedQuantity sums what the account's open orders have already
// claimed of the currency a trade in direction would spend: the quote
// currency for buys, the base currency for sells.
//
// Reservation is tracked per currency, not per symbol, so an open buy on
// ETH/USD reserves dollars that a buy on BTC/USD can no longer use.
// Buy-side reservations are costed at OrderPrice(security, order) where
// security is the one being evaluated, not the open order's own.
func ReservedQuantity(portfolio *models.Portfolio, security *models.Security, direction models.Direction) decimal.Decimal {
	pair, ok := supported(portfolio, security, "reserved_quantity")
	if !ok {
		return decimal.Zero
	}

	var target string
	switch direction {
	case models.DirectionBuy:
		target = pair.QuoteCurrency
	case models.DirectionSell:
		target = pair.BaseCurrency
	default:
		return decimal.Zero
	}

	consuming := consumingDirections(portfolio, target)
	if len(consuming) == 0 {
		return decimal.Zero
	}

	openOrders := portfolio.OpenOrders(func(o *models.Order) bool {
		d, ok := consuming[o.Symbol]
		return ok && d == o.Direction()
	})

	reserved := decimal.Zero
	for _, order := range openOrders {
		orderPair, _ := portfolio.Securities[order.Symbol].CurrencyPair()
		amount := order.AbsoluteQuantity()
		if orderPair.QuoteCurrency == target {
			amount = amount.Mul(OrderPrice(security, order))
		}
		if amount.IsNegative() {
			continue
		}
		reserved = reserved.Add(amount)
	}

	return reserved
}

// consumingDirections maps each pair security to the one order direction
// that would spend currency: Sell when currency is its base, Buy when it
// is its quote.
func consumingDirections(portfolio *models.Portfolio, currency string) map[string]models.Direction {
	result := make(map[string]models.Direction)
	for symbol, sec := range portfolio.Securities {
		pair, ok := sec.CurrencyPair()
		if !ok {
			continue
		}
		if pair.BaseCurrency == currency {
			result[symbol] = models.DirectionSell
		} else if pair.QuoteCurrency == currency {
			result[symbol] = models.DirectionBuy
		}
	}
	return result
}
