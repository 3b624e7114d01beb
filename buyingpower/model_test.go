package buyingpower

import (
	"testing"

	"cash-buying-power/models"

	"github.com/shopspring/decimal"
)

func TestCashModel_Leverage(t *testing.T) {
	m := NewCashModel()
	sec := usdPair("BTCUSD", "BTC", "30000", "0.0001", nil)

	if got := m.Leverage(sec); !got.Equal(d("1")) {
		t.Errorf("Leverage() = %v, want 1", got)
	}

	m.SetLeverage(sec, d("4"))
	if got := m.Leverage(sec); !got.Equal(d("1")) {
		t.Errorf("Leverage() after SetLeverage(4) = %v, want 1", got)
	}
}

func TestCashModel_ReservedBuyingPowerForPosition(t *testing.T) {
	m := NewCashModel()

	for _, sec := range []*models.Security{
		usdPair("BTCUSD", "BTC", "30000", "0.0001", nil),
		equity("AAPL", "190"),
		nil,
	} {
		if got := m.ReservedBuyingPowerForPosition(sec); !got.IsZero() {
			t.Errorf("ReservedBuyingPowerForPosition(%v) = %v, want 0", sec, got)
		}
	}
}

func TestCashModel_AvailableBuyingPower(t *testing.T) {
	m := NewCashModel()
	sec := usdPair("XYZUSD", "XYZ", "100", "1", flatFee("1"))
	p := testPortfolio("10000", sec)
	p.CashBook.Set("XYZ", d("7"), d("100"))

	tests := []struct {
		name      string
		direction models.Direction
		want      decimal.Decimal
	}{
		{"buy is units purchasable", models.DirectionBuy, d("100")},
		{"sell is units held", models.DirectionSell, d("7")},
		{"hold is zero", models.DirectionHold, decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.AvailableBuyingPower(p, sec, tt.direction); !got.Equal(tt.want) {
				t.Errorf("AvailableBuyingPower(%s) = %v, want %v", tt.direction, got, tt.want)
			}
		})
	}

	t.Run("zero price", func(t *testing.T) {
		free := usdPair("FREEUSD", "FREE", "0", "1", nil)
		if got := m.AvailableBuyingPower(testPortfolio("10000", free), free, models.DirectionBuy); !got.IsZero() {
			t.Errorf("AvailableBuyingPower with zero price = %v, want 0", got)
		}
	})

	t.Run("quote conversion rate divides price", func(t *testing.T) {
		eur := models.NewCurrencyPairSecurity("XYZEUR", "XYZ", "EUR", d("100"), d("2"), d("1"), nil)
		p := testPortfolio("0", eur)
		p.CashBook.Set("EUR", d("500"), d("2"))
		// unit price = 100 / 2 = 50 → 500 / 50 = 10
		if got := m.AvailableBuyingPower(p, eur, models.DirectionBuy); !got.Equal(d("10")) {
			t.Errorf("AvailableBuyingPower() = %v, want 10", got)
		}
	})
}

func TestCashModel_UnsupportedSecurity(t *testing.T) {
	m := NewCashModel()
	stock := equity("AAPL", "190")
	p := testPortfolio("100000", stock)
	order := models.NewMarketOrder("AAPL", d("1"))

	if m.CanAfford(p, stock, order) {
		t.Error("CanAfford() should be false for a security without a currency pair")
	}
	if got := m.MaxQuantityForTargetValue(p, stock, d("5000")); !got.IsZero() {
		t.Errorf("MaxQuantityForTargetValue() = %v, want 0", got)
	}
	if got := m.AvailableBuyingPower(p, stock, models.DirectionBuy); !got.IsZero() {
		t.Errorf("AvailableBuyingPower(buy) = %v, want 0", got)
	}
	if got := m.AvailableBuyingPower(p, stock, models.DirectionSell); !got.IsZero() {
		t.Errorf("AvailableBuyingPower(sell) = %v, want 0", got)
	}
	if got := m.ReservedBuyingPowerForPosition(stock); !got.IsZero() {
		t.Errorf("ReservedBuyingPowerForPosition() = %v, want 0", got)
	}
	if got := ReservedQuantity(p, stock, models.DirectionBuy); !got.IsZero() {
		t.Errorf("ReservedQuantity() = %v, want 0", got)
	}
	// leverage is a property of the account, not of the security
	if got := m.Leverage(stock); !got.Equal(d("1")) {
		t.Errorf("Leverage() = %v, want 1", got)
	}
}

func TestCashModel_NilSnapshot(t *testing.T) {
	m := NewCashModel()
	sec := usdPair("BTCUSD", "BTC", "30000", "0.0001", nil)

	if m.CanAfford(nil, sec, models.NewMarketOrder("BTCUSD", d("1"))) {
		t.Error("CanAfford(nil portfolio) should be false")
	}
	if got := m.MaxQuantityForTargetValue(nil, sec, d("100")); !got.IsZero() {
		t.Errorf("MaxQuantityForTargetValue(nil portfolio) = %v, want 0", got)
	}
	if m.CanAfford(testPortfolio("100", sec), sec, nil) {
		t.Error("CanAfford(nil order) should be false")
	}
}

func TestOrderPrice(t *testing.T) {
	sec := usdPair("BTCUSD", "BTC", "30000", "0.0001", nil)

	tests := []struct {
		name  string
		order *models.Order
		want  decimal.Decimal
	}{
		{"market", models.NewMarketOrder("BTCUSD", d("1")), d("30000")},
		{"limit", models.NewLimitOrder("BTCUSD", d("1"), d("29000")), d("29000")},
		{"stop market", models.NewStopMarketOrder("BTCUSD", d("1"), d("31000")), d("31000")},
		{"stop limit", models.NewStopLimitOrder("BTCUSD", d("1"), d("31000"), d("31500")), d("31500")},
		{"unknown", &models.Order{Symbol: "BTCUSD", Quantity: d("1"), Type: "trailing_stop", LimitPrice: d("1"), StopPrice: d("2")}, decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OrderPrice(sec, tt.order); !got.Equal(tt.want) {
				t.Errorf("OrderPrice() = %v, want %v", got, tt.want)
			}
		})
	}
}
