package models

import "github.com/shopspring/decimal"

// CurrencyPair is the capability carried by securities that trade a base
// currency against a quote currency (FX and crypto pairs).
type CurrencyPair struct {
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
}

// QuoteCurrency is the currency a security is priced in, along with its
// conversion rate into the account currency.
type QuoteCurrency struct {
	Code           string          `json:"code"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// FeeModel computes the fee for an order, in account currency.
type FeeModel interface {
	OrderFee(security *Security, order *Order) decimal.Decimal
}

// Security is a tradeable instrument as seen by the buying power model.
//
// Pair is nil for securities without a base/quote currency pair; those are
// unsupported by the cash buying power model.
type Security struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	QuoteCurrency QuoteCurrency   `json:"quote_currency"`
	Pair          *CurrencyPair   `json:"pair,omitempty"`
	LotSize       decimal.Decimal `json:"lot_size"`
	FeeModel      FeeModel        `json:"-"`
}

// CurrencyPair returns the security's base/quote pair and whether it has one.
func (s *Security) CurrencyPair() (CurrencyPair, bool) {
	if s == nil || s.Pair == nil {
		return CurrencyPair{}, false
	}
	return *s.Pair, true
}

// OrderFee returns the fee for the order under the security's fee model.
// A security without a fee model trades for free.
func (s *Security) OrderFee(order *Order) decimal.Decimal {
	if s.FeeModel == nil {
		return decimal.Zero
	}
	return s.FeeModel.OrderFee(s, order)
}

// NewCurrencyPairSecurity builds a pair security priced in its quote currency.
func NewCurrencyPairSecurity(symbol, base, quote string, price, quoteRate, lotSize decimal.Decimal, fees FeeModel) *Security {
	return &Security{
		Symbol: symbol,
		Price:  price,
		QuoteCurrency: QuoteCurrency{
			Code:           quote,
			ConversionRate: quoteRate,
		},
		Pair: &CurrencyPair{
			BaseCurrency:  base,
			QuoteCurrency: quote,
		},
		LotSize:  lotSize,
		FeeModel: fees,
	}
}
