package fees

import (
	"errors"
	"testing"

	"cash-buying-power/models"

	"github.com/shopspring/decimal"
)

func testSecurity() *models.Security {
	return models.NewCurrencyPairSecurity("BTCEUR", "BTC", "EUR",
		decimal.NewFromInt(100), decimal.RequireFromString("1.1"), decimal.NewFromInt(1), nil)
}

func TestConstantFeeModel(t *testing.T) {
	m := NewConstantFeeModel(decimal.NewFromInt(1))
	sec := testSecurity()

	for _, qty := range []int64{1, 10, -1000} {
		order := models.NewMarketOrder(sec.Symbol, decimal.NewFromInt(qty))
		if got := m.OrderFee(sec, order); !got.Equal(decimal.NewFromInt(1)) {
			t.Errorf("OrderFee(qty=%d) = %v, want 1", qty, got)
		}
	}
}

func TestNotional(t *testing.T) {
	sec := testSecurity()

	tests := []struct {
		name  string
		order *models.Order
		want  decimal.Decimal
	}{
		{"market uses security price", models.NewMarketOrder(sec.Symbol, decimal.NewFromInt(2)), decimal.NewFromInt(220)},
		{"limit uses limit price", models.NewLimitOrder(sec.Symbol, decimal.NewFromInt(-2), decimal.NewFromInt(50)), decimal.NewFromInt(110)},
		{"stop market uses stop price", models.NewStopMarketOrder(sec.Symbol, decimal.NewFromInt(1), decimal.NewFromInt(90)), decimal.NewFromInt(99)},
		{"stop limit uses limit price", models.NewStopLimitOrder(sec.Symbol, decimal.NewFromInt(1), decimal.NewFromInt(90), decimal.NewFromInt(80)), decimal.NewFromInt(88)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Notional(sec, tt.order); !got.Equal(tt.want) {
				t.Errorf("Notional() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPercentFeeModel(t *testing.T) {
	m := NewPercentFeeModel(decimal.RequireFromString("0.01"), decimal.NewFromInt(2))
	sec := testSecurity()

	small := models.NewMarketOrder(sec.Symbol, decimal.NewFromInt(1)) // notional 110 → 1.1, below minimum
	if got := m.OrderFee(sec, small); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("OrderFee(small) = %v, want minimum 2", got)
	}

	large := models.NewMarketOrder(sec.Symbol, decimal.NewFromInt(10)) // notional 1100 → 11
	if got := m.OrderFee(sec, large); !got.Equal(decimal.NewFromInt(11)) {
		t.Errorf("OrderFee(large) = %v, want 11", got)
	}
}

func TestMakerTakerFeeModel(t *testing.T) {
	m := NewMakerTakerFeeModel(decimal.Zero, decimal.RequireFromString("0.0025"))
	sec := testSecurity()

	market := models.NewMarketOrder(sec.Symbol, decimal.NewFromInt(10))
	if got := m.OrderFee(sec, market); !got.Equal(decimal.RequireFromString("2.75")) {
		t.Errorf("taker fee = %v, want 2.75", got)
	}

	limit := models.NewLimitOrder(sec.Symbol, decimal.NewFromInt(10), decimal.NewFromInt(100))
	if got := m.OrderFee(sec, limit); !got.IsZero() {
		t.Errorf("maker fee = %v, want 0", got)
	}
}

func TestFromSpec(t *testing.T) {
	tests := []struct {
		spec    Spec
		want    string
		wantErr bool
	}{
		{Spec{}, "*fees.ConstantFeeModel", false},
		{Spec{Model: "constant", Amount: decimal.NewFromInt(1)}, "*fees.ConstantFeeModel", false},
		{Spec{Model: "Percent", Rate: decimal.RequireFromString("0.001")}, "*fees.PercentFeeModel", false},
		{Spec{Model: "maker_taker"}, "*fees.MakerTakerFeeModel", false},
		{Spec{Model: "tiered"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec.Model, func(t *testing.T) {
			m, err := FromSpec(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, models.ErrUnknownFeeModel) {
					t.Fatalf("FromSpec() error = %v, want ErrUnknownFeeModel", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromSpec() unexpected error: %v", err)
			}
			switch tt.want {
			case "*fees.ConstantFeeModel":
				if _, ok := m.(*ConstantFeeModel); !ok {
					t.Errorf("FromSpec() = %T, want %s", m, tt.want)
				}
			case "*fees.PercentFeeModel":
				if _, ok := m.(*PercentFeeModel); !ok {
					t.Errorf("FromSpec() = %T, want %s", m, tt.want)
				}
			case "*fees.MakerTakerFeeModel":
				if _, ok := m.(*MakerTakerFeeModel); !ok {
					t.Errorf("FromSpec() = %T, want %s", m, tt.want)
				}
			}
		})
	}
}
