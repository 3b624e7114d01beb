package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SecurityPrice is the last known market price of a symbol in its quote
// currency.
type SecurityPrice struct {
	Symbol        string          `json:"symbol"`
	QuoteCurrency string          `json:"quote_currency"`
	Price         decimal.Decimal `json:"price"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ExchangeRate is the value of one unit of From expressed in To.
type ExchangeRate struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// SecurityBuilder turns a priced symbol into a Security carrying its
// static properties (pair, lot size, fee model).
type SecurityBuilder interface {
	Security(symbol, quote string, price, quoteRate decimal.Decimal) (*Security, error)
}
