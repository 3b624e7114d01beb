package repository

import (
	"testing"

	"cash-buying-power/config"
	"cash-buying-power/models"
)

func TestPriceSecurity_QuoteResolvedThroughCatalog(t *testing.T) {
	catalog, err := config.ParseCatalog([]byte(`
instruments:
  - symbol: XYZEUR
    base: XYZ
    quote: EUR
    lot_size: 1
`), config.NewTestConfig().Instruments)
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	book := models.NewCashBook("USD")
	book.Set("USD", dec("1000"), dec("1"))
	book.Set("EUR", dec("500"), dec("1.1"))

	tests := []struct {
		name      string
		price     models.SecurityPrice
		wantQuote string
		wantRate  string
	}{
		{
			name:      "row agrees with catalog",
			price:     models.SecurityPrice{Symbol: "XYZEUR", QuoteCurrency: "eur", Price: dec("100")},
			wantQuote: "EUR",
			wantRate:  "1.1",
		},
		{
			name:      "row disagrees with catalog",
			price:     models.SecurityPrice{Symbol: "XYZEUR", QuoteCurrency: "USD", Price: dec("100")},
			wantQuote: "EUR",
			wantRate:  "1.1",
		},
		{
			name:      "uncatalogued symbol keeps row quote",
			price:     models.SecurityPrice{Symbol: "ABC", QuoteCurrency: "usd", Price: dec("10")},
			wantQuote: "USD",
			wantRate:  "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec, err := priceSecurity(catalog, book, tt.price)
			if err != nil {
				t.Fatalf("priceSecurity() error = %v", err)
			}
			if sec.QuoteCurrency.Code != tt.wantQuote {
				t.Errorf("quote = %s, want %s", sec.QuoteCurrency.Code, tt.wantQuote)
			}
			if !sec.QuoteCurrency.ConversionRate.Equal(dec(tt.wantRate)) {
				t.Errorf("conversion rate = %v, want %s", sec.QuoteCurrency.ConversionRate, tt.wantRate)
			}
			if !sec.Price.Equal(tt.price.Price) {
				t.Errorf("price = %v, want %v", sec.Price, tt.price.Price)
			}
		})
	}
}
