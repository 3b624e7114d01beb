package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Cash is the balance held in a single currency.
type Cash struct {
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

// ValueInAccountCurrency returns amount × conversion rate.
func (c Cash) ValueInAccountCurrency() decimal.Decimal {
	return c.Amount.Mul(c.ConversionRate)
}

// CashBook maps currency codes to balances. The account currency always
// converts at 1.
type CashBook struct {
	AccountCurrency string
	entries         map[string]Cash
}

// NewCashBook creates an empty cash book for the given account currency.
func NewCashBook(accountCurrency string) *CashBook {
	cb := &CashBook{
		AccountCurrency: accountCurrency,
		entries:         make(map[string]Cash),
	}
	cb.entries[accountCurrency] = Cash{
		Currency:       accountCurrency,
		Amount:         decimal.Zero,
		ConversionRate: decimal.NewFromInt(1),
	}
	return cb
}

// Set stores the balance and conversion rate for a currency.
func (cb *CashBook) Set(currency string, amount, conversionRate decimal.Decimal) {
	if currency == cb.AccountCurrency {
		conversionRate = decimal.NewFromInt(1)
	}
	cb.entries[currency] = Cash{
		Currency:       currency,
		Amount:         amount,
		ConversionRate: conversionRate,
	}
}

// SetConversionRate updates only the rate of a currency, creating a zero
// balance entry if the currency is unknown.
func (cb *CashBook) SetConversionRate(currency string, conversionRate decimal.Decimal) {
	c := cb.entries[currency]
	cb.Set(currency, c.Amount, conversionRate)
}

// Get returns the entry for a currency.
func (cb *CashBook) Get(currency string) (Cash, bool) {
	c, ok := cb.entries[currency]
	return c, ok
}

// Amount returns the balance held in a currency, zero when absent.
func (cb *CashBook) Amount(currency string) decimal.Decimal {
	return cb.entries[currency].Amount
}

// ConversionRate returns the rate of a currency into the account currency,
// zero when absent.
func (cb *CashBook) ConversionRate(currency string) decimal.Decimal {
	return cb.entries[currency].ConversionRate
}

// ConvertToAccountCurrency converts an amount held in currency.
func (cb *CashBook) ConvertToAccountCurrency(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Mul(cb.ConversionRate(currency))
}

// Convert converts an amount between two currencies via their account
// currency rates. Converting into a currency without a rate yields zero.
func (cb *CashBook) Convert(amount decimal.Decimal, from, to string) decimal.Decimal {
	if from == to {
		return amount
	}
	toRate := cb.ConversionRate(to)
	if toRate.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(cb.ConversionRate(from)).Div(toRate)
}

// TotalValue sums every balance in account currency.
func (cb *CashBook) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, c := range cb.entries {
		total = total.Add(c.ValueInAccountCurrency())
	}
	return total
}

// Currencies returns the known currency codes in sorted order.
func (cb *CashBook) Currencies() []string {
	codes := make([]string, 0, len(cb.entries))
	for code := range cb.entries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Entries returns a copy of all balances, sorted by currency.
func (cb *CashBook) Entries() []Cash {
	result := make([]Cash, 0, len(cb.entries))
	for _, code := range cb.Currencies() {
		result = append(result, cb.entries[code])
	}
	return result
}
