package repository

import (
	"context"
	"fmt"
	"time"

	"cash-buying-power/models"

	"github.com/jackc/pgx/v5"
)

// GetCachedRate returns an unexpired cached exchange rate, or nil when
// there is none.
func (r *Repository) GetCachedRate(ctx context.Context, from, to string) (*models.ExchangeRate, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}

	rate := models.ExchangeRate{From: from, To: to}

	// Let the database handle expiry check to avoid timezone issues
	err := r.db.QueryRow(ctx, `
		SELECT rate, created_at FROM conversion_rate_cache
		WHERE from_currency = $1 AND to_currency = $2 AND expires_at > NOW()
	`, from, to).Scan(&rate.Rate, &rate.FetchedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rate cache: %w", err)
	}

	return &rate, nil
}

// SetCachedRate stores an exchange rate with a TTL
func (r *Repository) SetCachedRate(ctx context.Context, rate models.ExchangeRate, ttl time.Duration) error {
	if err := r.checkDB(); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO conversion_rate_cache (from_currency, to_currency, rate, expires_at)
		VALUES ($1, $2, $3, NOW() + $4::interval)
		ON CONFLICT (from_currency, to_currency)
		DO UPDATE SET rate = EXCLUDED.rate, expires_at = NOW() + $4::interval, created_at = NOW()
	`, rate.From, rate.To, rate.Rate, ttl.String())

	if err != nil {
		return fmt.Errorf("failed to set rate cache: %w", err)
	}

	return nil
}

// InvalidateRate removes a cached exchange rate
func (r *Repository) InvalidateRate(ctx context.Context, from, to string) error {
	if err := r.checkDB(); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx, `
		DELETE FROM conversion_rate_cache WHERE from_currency = $1 AND to_currency = $2
	`, from, to)
	if err != nil {
		return fmt.Errorf("failed to invalidate rate cache: %w", err)
	}
	return nil
}

// CleanExpiredRates removes all expired cache entries
func (r *Repository) CleanExpiredRates(ctx context.Context) (int64, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}

	result, err := r.db.Exec(ctx, `DELETE FROM conversion_rate_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired rates: %w", err)
	}
	return result.RowsAffected(), nil
}
