package models

// Portfolio is a point-in-time snapshot of an account: its cash book, the
// securities it can trade and the orders still working across the account.
//
// The snapshot is owned by the caller. Readers assume it does not change
// while they hold it; writers must serialize against evaluation.
type Portfolio struct {
	AccountID  string
	CashBook   *CashBook
	Securities map[string]*Security
	Orders     []*Order
}

// NewPortfolio creates an empty snapshot for the given account currency.
func NewPortfolio(accountID, accountCurrency string) *Portfolio {
	return &Portfolio{
		AccountID:  accountID,
		CashBook:   NewCashBook(accountCurrency),
		Securities: make(map[string]*Security),
	}
}

// AddSecurity registers a security under its symbol.
func (p *Portfolio) AddSecurity(s *Security) {
	p.Securities[s.Symbol] = s
}

// Security looks up a security by symbol.
func (p *Portfolio) Security(symbol string) (*Security, bool) {
	s, ok := p.Securities[symbol]
	return s, ok
}

// OpenOrders returns the open orders accepted by filter. A nil filter
// accepts every open order.
func (p *Portfolio) OpenOrders(filter func(*Order) bool) []*Order {
	var result []*Order
	for _, o := range p.Orders {
		if !o.IsOpen() {
			continue
		}
		if filter != nil && !filter(o) {
			continue
		}
		result = append(result, o)
	}
	return result
}
