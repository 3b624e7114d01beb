package buyingpower

import (
	"cash-buying-power/fees"
	"cash-buying-power/models"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// usdPair builds a BASE/USD pair priced in dollars.
func usdPair(symbol, base string, price, lotSize string, fee models.FeeModel) *models.Security {
	return models.NewCurrencyPairSecurity(symbol, base, "USD", d(price), d("1"), d(lotSize), fee)
}

func flatFee(amount string) models.FeeModel {
	return fees.NewConstantFeeModel(d(amount))
}

// testPortfolio returns a USD account holding usd dollars, with the given
// securities registered and their base currencies valued at market.
func testPortfolio(usd string, securities ...*models.Security) *models.Portfolio {
	p := models.NewPortfolio("test", "USD")
	p.CashBook.Set("USD", d(usd), d("1"))
	for _, s := range securities {
		p.AddSecurity(s)
		if pair, ok := s.CurrencyPair(); ok {
			if _, exists := p.CashBook.Get(pair.BaseCurrency); !exists {
				p.CashBook.Set(pair.BaseCurrency, decimal.Zero, s.Price.Mul(s.QuoteCurrency.ConversionRate))
			}
		}
	}
	return p
}

func equity(symbol, price string) *models.Security {
	return &models.Security{
		Symbol: symbol,
		Price:  d(price),
		QuoteCurrency: models.QuoteCurrency{
			Code:           "USD",
			ConversionRate: d("1"),
		},
		LotSize:  d("1"),
		FeeModel: flatFee("1"),
	}
}
