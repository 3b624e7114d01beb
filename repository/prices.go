package repository

import (
	"context"
	"fmt"

	"cash-buying-power/models"
	"cash-buying-power/observability"
)

// GetSecurityPrices returns the last known price of every symbol
func (r *Repository) GetSecurityPrices(ctx context.Context) ([]models.SecurityPrice, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "security_prices")

	rows, err := r.db.Query(ctx, `
		SELECT symbol, quote_currency, price, updated_at
		FROM security_prices
		ORDER BY symbol
	`)
	if err != nil {
		metrics.RecordDBError("select", "security_prices")
		return nil, fmt.Errorf("failed to query security prices: %w", err)
	}
	defer rows.Close()

	var prices []models.SecurityPrice
	for rows.Next() {
		var p models.SecurityPrice
		if err := rows.Scan(&p.Symbol, &p.QuoteCurrency, &p.Price, &p.UpdatedAt); err != nil {
			metrics.RecordDBError("select", "security_prices")
			return nil, fmt.Errorf("failed to scan security price: %w", err)
		}
		prices = append(prices, p)
	}

	return prices, rows.Err()
}

// UpsertSecurityPrice records the latest price of a symbol
func (r *Repository) UpsertSecurityPrice(ctx context.Context, price *models.SecurityPrice) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "security_prices")

	err := r.db.QueryRow(ctx, `
		INSERT INTO security_prices (symbol, quote_currency, price, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (symbol)
		DO UPDATE SET quote_currency = EXCLUDED.quote_currency, price = EXCLUDED.price, updated_at = NOW()
		RETURNING updated_at
	`, price.Symbol, price.QuoteCurrency, price.Price).Scan(&price.UpdatedAt)
	if err != nil {
		metrics.RecordDBError("upsert", "security_prices")
		return fmt.Errorf("failed to upsert security price: %w", err)
	}

	return nil
}
