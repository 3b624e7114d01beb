package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID         uuid.UUID       `json:"id"`
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"` // signed: positive buys, negative sells
	Type       OrderType       `json:"type"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	StopPrice  decimal.Decimal `json:"stop_price"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStopMarket OrderType = "stop_market"
	OrderTypeStopLimit  OrderType = "stop_limit"
)

// Valid reports whether t is one of the known order types.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopMarket, OrderTypeStopLimit:
		return true
	}
	return false
}

type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
	DirectionHold Direction = "hold"
)

// ParseDirection maps "buy"/"sell" (any case handled by the caller) to a
// Direction; anything else is Hold.
func ParseDirection(s string) Direction {
	switch Direction(s) {
	case DirectionBuy:
		return DirectionBuy
	case DirectionSell:
		return DirectionSell
	default:
		return DirectionHold
	}
}

type OrderStatus string

const (
	OrderStatusSubmitted       OrderStatus = "submitted"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

func newOrder(symbol string, quantity decimal.Decimal, orderType OrderType) *Order {
	now := time.Now()
	return &Order{
		ID:        uuid.New(),
		Symbol:    symbol,
		Quantity:  quantity,
		Type:      orderType,
		Status:    OrderStatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewMarketOrder(symbol string, quantity decimal.Decimal) *Order {
	return newOrder(symbol, quantity, OrderTypeMarket)
}

func NewLimitOrder(symbol string, quantity, limitPrice decimal.Decimal) *Order {
	o := newOrder(symbol, quantity, OrderTypeLimit)
	o.LimitPrice = limitPrice
	return o
}

func NewStopMarketOrder(symbol string, quantity, stopPrice decimal.Decimal) *Order {
	o := newOrder(symbol, quantity, OrderTypeStopMarket)
	o.StopPrice = stopPrice
	return o
}

func NewStopLimitOrder(symbol string, quantity, stopPrice, limitPrice decimal.Decimal) *Order {
	o := newOrder(symbol, quantity, OrderTypeStopLimit)
	o.StopPrice = stopPrice
	o.LimitPrice = limitPrice
	return o
}

// Direction is derived from the sign of the quantity.
func (o *Order) Direction() Direction {
	switch o.Quantity.Sign() {
	case 1:
		return DirectionBuy
	case -1:
		return DirectionSell
	default:
		return DirectionHold
	}
}

func (o *Order) AbsoluteQuantity() decimal.Decimal {
	return o.Quantity.Abs()
}

// IsOpen reports whether the order can still claim cash.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusSubmitted || o.Status == OrderStatusPartiallyFilled
}

// Validate checks the type-specific price fields.
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return invalidOrder("symbol is required")
	}
	if o.Quantity.IsZero() {
		return invalidOrder("quantity must be non-zero")
	}
	switch o.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if !o.LimitPrice.IsPositive() {
			return invalidOrder("limit orders require a positive limit_price")
		}
	case OrderTypeStopMarket:
		if !o.StopPrice.IsPositive() {
			return invalidOrder("stop market orders require a positive stop_price")
		}
	case OrderTypeStopLimit:
		if !o.StopPrice.IsPositive() || !o.LimitPrice.IsPositive() {
			return invalidOrder("stop limit orders require positive stop_price and limit_price")
		}
	default:
		return invalidOrder("unknown order type " + string(o.Type))
	}
	return nil
}
