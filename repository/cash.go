package repository

import (
	"context"
	"fmt"

	"cash-buying-power/models"
	"cash-buying-power/observability"
)

// GetCashBalances returns every currency balance held by the account
func (r *Repository) GetCashBalances(ctx context.Context, accountID string) ([]models.Cash, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "cash_balances")

	rows, err := r.db.Query(ctx, `
		SELECT currency, amount, conversion_rate
		FROM cash_balances
		WHERE account_id = $1
		ORDER BY currency
	`, accountID)
	if err != nil {
		metrics.RecordDBError("select", "cash_balances")
		return nil, fmt.Errorf("failed to query cash balances: %w", err)
	}
	defer rows.Close()

	var balances []models.Cash
	for rows.Next() {
		var c models.Cash
		if err := rows.Scan(&c.Currency, &c.Amount, &c.ConversionRate); err != nil {
			metrics.RecordDBError("select", "cash_balances")
			return nil, fmt.Errorf("failed to scan cash balance: %w", err)
		}
		balances = append(balances, c)
	}

	return balances, rows.Err()
}

// UpsertCashBalance sets the balance and conversion rate for one currency
func (r *Repository) UpsertCashBalance(ctx context.Context, accountID string, cash models.Cash) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "cash_balances")

	_, err := r.db.Exec(ctx, `
		INSERT INTO cash_balances (account_id, currency, amount, conversion_rate, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (account_id, currency)
		DO UPDATE SET amount = EXCLUDED.amount, conversion_rate = EXCLUDED.conversion_rate, updated_at = NOW()
	`, accountID, cash.Currency, cash.Amount, cash.ConversionRate)
	if err != nil {
		metrics.RecordDBError("upsert", "cash_balances")
		return fmt.Errorf("failed to upsert cash balance: %w", err)
	}

	return nil
}

// UpdateConversionRate applies rate.Rate to rate.From balances of every
// account reporting in rate.To, leaving amounts untouched.
func (r *Repository) UpdateConversionRate(ctx context.Context, rate models.ExchangeRate) error {
	if err := r.checkDB(); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx, `
		UPDATE cash_balances cb
		SET conversion_rate = $2, updated_at = NOW()
		FROM accounts a
		WHERE cb.account_id = a.id AND cb.currency = $1 AND a.currency = $3
	`, rate.From, rate.Rate, rate.To)
	if err != nil {
		observability.GetMetrics().RecordDBError("update", "cash_balances")
		return fmt.Errorf("failed to update conversion rate: %w", err)
	}

	return nil
}
