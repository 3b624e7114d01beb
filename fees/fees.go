package fees

import (
	"fmt"
	"strings"

	"cash-buying-power/models"

	"github.com/shopspring/decimal"
)

// ConstantFeeModel charges a flat fee per order, in account currency.
type ConstantFeeModel struct {
	Fee decimal.Decimal
}

func NewConstantFeeModel(fee decimal.Decimal) *ConstantFeeModel {
	return &ConstantFeeModel{Fee: fee}
}

func (m *ConstantFeeModel) OrderFee(_ *models.Security, _ *models.Order) decimal.Decimal {
	return m.Fee
}

// PercentFeeModel charges a fraction of the order notional, never less
// than Minimum.
type PercentFeeModel struct {
	Rate    decimal.Decimal
	Minimum decimal.Decimal
}

func NewPercentFeeModel(rate, minimum decimal.Decimal) *PercentFeeModel {
	return &PercentFeeModel{Rate: rate, Minimum: minimum}
}

func (m *PercentFeeModel) OrderFee(security *models.Security, order *models.Order) decimal.Decimal {
	return decimal.Max(Notional(security, order).Mul(m.Rate), m.Minimum)
}

// MakerTakerFeeModel charges the taker rate for orders that remove
// liquidity (market, stop market) and the maker rate for resting limit
// orders.
type MakerTakerFeeModel struct {
	MakerRate decimal.Decimal
	TakerRate decimal.Decimal
}

func NewMakerTakerFeeModel(makerRate, takerRate decimal.Decimal) *MakerTakerFeeModel {
	return &MakerTakerFeeModel{MakerRate: makerRate, TakerRate: takerRate}
}

func (m *MakerTakerFeeModel) OrderFee(security *models.Security, order *models.Order) decimal.Decimal {
	rate := m.TakerRate
	if order.Type == models.OrderTypeLimit || order.Type == models.OrderTypeStopLimit {
		rate = m.MakerRate
	}
	return Notional(security, order).Mul(rate)
}

// Notional is the order value in account currency at its reference price.
func Notional(security *models.Security, order *models.Order) decimal.Decimal {
	price := security.Price
	switch order.Type {
	case models.OrderTypeLimit, models.OrderTypeStopLimit:
		price = order.LimitPrice
	case models.OrderTypeStopMarket:
		price = order.StopPrice
	}
	return order.AbsoluteQuantity().Mul(price).Mul(security.QuoteCurrency.ConversionRate)
}

// Spec describes a fee model in configuration.
type Spec struct {
	Model     string          `yaml:"model" json:"model"`
	Amount    decimal.Decimal `yaml:"amount" json:"amount"`
	Rate      decimal.Decimal `yaml:"rate" json:"rate"`
	Minimum   decimal.Decimal `yaml:"minimum" json:"minimum"`
	MakerRate decimal.Decimal `yaml:"maker_rate" json:"maker_rate"`
	TakerRate decimal.Decimal `yaml:"taker_rate" json:"taker_rate"`
}

// FromSpec builds the fee model a Spec describes.
func FromSpec(spec Spec) (models.FeeModel, error) {
	switch strings.ToLower(spec.Model) {
	case "", "constant":
		return NewConstantFeeModel(spec.Amount), nil
	case "percent":
		return NewPercentFeeModel(spec.Rate, spec.Minimum), nil
	case "maker_taker":
		return NewMakerTakerFeeModel(spec.MakerRate, spec.TakerRate), nil
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownFeeModel, spec.Model)
	}
}
