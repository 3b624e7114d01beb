package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewMarketOrder(t *testing.T) {
	order := NewMarketOrder("BTCUSD", decimal.NewFromInt(10))

	if order.Symbol != "BTCUSD" {
		t.Errorf("Symbol = %v, want 'BTCUSD'", order.Symbol)
	}
	if order.Type != OrderTypeMarket {
		t.Errorf("Type = %v, want OrderTypeMarket", order.Type)
	}
	if order.Status != OrderStatusSubmitted {
		t.Errorf("Status = %v, want OrderStatusSubmitted", order.Status)
	}
	if order.ID == [16]byte{} {
		t.Error("ID should not be zero UUID")
	}
	if order.CreatedAt.IsZero() {
		t.Error("CreatedAt should not be zero")
	}
}

func TestOrder_TypeSpecificPrices(t *testing.T) {
	limit := NewLimitOrder("BTCUSD", decimal.NewFromInt(1), decimal.NewFromInt(100))
	if !limit.LimitPrice.Equal(decimal.NewFromInt(100)) || !limit.StopPrice.IsZero() {
		t.Errorf("limit order prices = (%v, %v), want (100, 0)", limit.LimitPrice, limit.StopPrice)
	}

	stop := NewStopMarketOrder("BTCUSD", decimal.NewFromInt(1), decimal.NewFromInt(90))
	if !stop.StopPrice.Equal(decimal.NewFromInt(90)) || !stop.LimitPrice.IsZero() {
		t.Errorf("stop market prices = (%v, %v), want (0, 90)", stop.LimitPrice, stop.StopPrice)
	}

	stopLimit := NewStopLimitOrder("BTCUSD", decimal.NewFromInt(1), decimal.NewFromInt(90), decimal.NewFromInt(95))
	if !stopLimit.StopPrice.Equal(decimal.NewFromInt(90)) || !stopLimit.LimitPrice.Equal(decimal.NewFromInt(95)) {
		t.Errorf("stop limit prices = (%v, %v), want (95, 90)", stopLimit.LimitPrice, stopLimit.StopPrice)
	}
}

func TestOrder_Direction(t *testing.T) {
	tests := []struct {
		quantity int64
		want     Direction
	}{
		{10, DirectionBuy},
		{-10, DirectionSell},
		{0, DirectionHold},
	}

	for _, tt := range tests {
		order := NewMarketOrder("ETHUSD", decimal.NewFromInt(tt.quantity))
		if got := order.Direction(); got != tt.want {
			t.Errorf("Direction() for quantity %d = %v, want %v", tt.quantity, got, tt.want)
		}
		if !order.AbsoluteQuantity().Equal(decimal.NewFromInt(tt.quantity).Abs()) {
			t.Errorf("AbsoluteQuantity() = %v", order.AbsoluteQuantity())
		}
	}
}

func TestOrder_IsOpen(t *testing.T) {
	statuses := map[OrderStatus]bool{
		OrderStatusSubmitted:       true,
		OrderStatusPartiallyFilled: true,
		OrderStatusFilled:          false,
		OrderStatusCancelled:       false,
	}

	for status, want := range statuses {
		order := NewMarketOrder("ETHUSD", decimal.NewFromInt(1))
		order.Status = status
		if got := order.IsOpen(); got != want {
			t.Errorf("IsOpen() with status %v = %v, want %v", status, got, want)
		}
	}
}

func TestOrder_Validate(t *testing.T) {
	tests := []struct {
		name    string
		order   *Order
		wantErr bool
	}{
		{"market", NewMarketOrder("BTCUSD", decimal.NewFromInt(1)), false},
		{"limit", NewLimitOrder("BTCUSD", decimal.NewFromInt(1), decimal.NewFromInt(10)), false},
		{"limit without price", NewLimitOrder("BTCUSD", decimal.NewFromInt(1), decimal.Zero), true},
		{"stop market without price", NewStopMarketOrder("BTCUSD", decimal.NewFromInt(1), decimal.Zero), true},
		{"stop limit missing limit", NewStopLimitOrder("BTCUSD", decimal.NewFromInt(1), decimal.NewFromInt(5), decimal.Zero), true},
		{"zero quantity", NewMarketOrder("BTCUSD", decimal.Zero), true},
		{"missing symbol", NewMarketOrder("", decimal.NewFromInt(1)), true},
		{"unknown type", &Order{Symbol: "BTCUSD", Quantity: decimal.NewFromInt(1), Type: "trailing"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("Validate() error should wrap ErrInvalidOrder, got %v", err)
			}
		})
	}
}

func TestParseDirection(t *testing.T) {
	if ParseDirection("buy") != DirectionBuy {
		t.Error("expected buy")
	}
	if ParseDirection("sell") != DirectionSell {
		t.Error("expected sell")
	}
	if ParseDirection("short") != DirectionHold {
		t.Error("expected hold for unknown direction")
	}
}
