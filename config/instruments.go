package config

import (
	"fmt"
	"os"
	"strings"

	"cash-buying-power/fees"
	"cash-buying-power/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Instrument is one catalog entry. Entries without a base currency
// describe securities that are not currency pairs.
type Instrument struct {
	Symbol  string          `yaml:"symbol"`
	Base    string          `yaml:"base"`
	Quote   string          `yaml:"quote"`
	LotSize decimal.Decimal `yaml:"lot_size"`
	Fee     *fees.Spec      `yaml:"fee"`
}

// Catalog maps symbols to their static instrument properties.
type Catalog struct {
	Instruments []Instrument `yaml:"instruments"`

	defaults InstrumentsConfig
	bySymbol map[string]Instrument
}

// LoadCatalog reads the instrument catalog at path. A missing file yields
// an empty catalog so every security falls back to the defaults.
func LoadCatalog(path string, defaults InstrumentsConfig) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ParseCatalog(nil, defaults)
		}
		return nil, fmt.Errorf("failed to read instrument catalog %s: %w", path, err)
	}
	return ParseCatalog(data, defaults)
}

// ParseCatalog decodes a YAML instrument catalog.
func ParseCatalog(data []byte, defaults InstrumentsConfig) (*Catalog, error) {
	c := &Catalog{defaults: defaults}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("failed to parse instrument catalog: %w", err)
		}
	}

	c.bySymbol = make(map[string]Instrument, len(c.Instruments))
	for i, inst := range c.Instruments {
		inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))
		inst.Base = strings.ToUpper(strings.TrimSpace(inst.Base))
		inst.Quote = strings.ToUpper(strings.TrimSpace(inst.Quote))

		if inst.Symbol == "" {
			return nil, fmt.Errorf("instrument %d: symbol is required", i)
		}
		if _, dup := c.bySymbol[inst.Symbol]; dup {
			return nil, fmt.Errorf("instrument %s: duplicate symbol", inst.Symbol)
		}
		if inst.Base != "" && inst.Quote == "" {
			return nil, fmt.Errorf("instrument %s: quote is required when base is set", inst.Symbol)
		}
		if inst.LotSize.IsZero() {
			inst.LotSize = defaults.DefaultLotSize
		}
		if !inst.LotSize.IsPositive() {
			return nil, fmt.Errorf("instrument %s: lot_size must be positive", inst.Symbol)
		}
		if inst.Fee != nil {
			if _, err := fees.FromSpec(*inst.Fee); err != nil {
				return nil, fmt.Errorf("instrument %s: %w", inst.Symbol, err)
			}
		}

		c.Instruments[i] = inst
		c.bySymbol[inst.Symbol] = inst
	}

	return c, nil
}

// Lookup returns the catalog entry for symbol.
func (c *Catalog) Lookup(symbol string) (Instrument, bool) {
	inst, ok := c.bySymbol[strings.ToUpper(symbol)]
	return inst, ok
}

// Symbols returns every catalogued symbol in file order.
func (c *Catalog) Symbols() []string {
	out := make([]string, 0, len(c.Instruments))
	for _, inst := range c.Instruments {
		out = append(out, inst.Symbol)
	}
	return out
}

// Security builds the security for symbol at the given market price.
// quote is used when the catalog has no entry or the entry leaves it
// blank; quoteRate converts one unit of the quote currency into the
// account currency.
func (c *Catalog) Security(symbol, quote string, price, quoteRate decimal.Decimal) (*models.Security, error) {
	symbol = strings.ToUpper(symbol)
	inst, ok := c.Lookup(symbol)
	if !ok {
		inst = Instrument{Symbol: symbol, LotSize: c.defaults.DefaultLotSize}
	}
	if inst.Quote == "" {
		inst.Quote = strings.ToUpper(quote)
	}

	feeModel, err := c.feeModel(inst)
	if err != nil {
		return nil, err
	}

	if inst.Base == "" {
		return &models.Security{
			Symbol: inst.Symbol,
			Price:  price,
			QuoteCurrency: models.QuoteCurrency{
				Code:           inst.Quote,
				ConversionRate: quoteRate,
			},
			LotSize:  inst.LotSize,
			FeeModel: feeModel,
		}, nil
	}

	return models.NewCurrencyPairSecurity(inst.Symbol, inst.Base, inst.Quote, price, quoteRate, inst.LotSize, feeModel), nil
}

func (c *Catalog) feeModel(inst Instrument) (models.FeeModel, error) {
	if inst.Fee == nil {
		return fees.NewConstantFeeModel(c.defaults.DefaultFee), nil
	}
	return fees.FromSpec(*inst.Fee)
}
