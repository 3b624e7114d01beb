package repository

import (
	"context"
	"fmt"

	"cash-buying-power/models"
	"cash-buying-power/observability"

	"github.com/jackc/pgx/v5"
)

// EnsureAccount creates the account if it does not exist. An existing
// account keeps its currency.
func (r *Repository) EnsureAccount(ctx context.Context, id, currency string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()

	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, currency)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, id, currency)
	if err != nil {
		metrics.RecordDBError("insert", "accounts")
		return fmt.Errorf("failed to ensure account: %w", err)
	}

	// The account currency always converts at 1.
	_, err = r.db.Exec(ctx, `
		INSERT INTO cash_balances (account_id, currency, amount, conversion_rate)
		SELECT id, currency, 0, 1 FROM accounts WHERE id = $1
		ON CONFLICT (account_id, currency) DO NOTHING
	`, id)
	if err != nil {
		metrics.RecordDBError("insert", "cash_balances")
		return fmt.Errorf("failed to seed account currency balance: %w", err)
	}

	return nil
}

// GetAccount returns a single account by ID
func (r *Repository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "accounts")

	var a models.Account
	err := r.db.QueryRow(ctx, `
		SELECT id, currency, created_at, updated_at FROM accounts WHERE id = $1
	`, id).Scan(&a.ID, &a.Currency, &a.CreatedAt, &a.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "accounts")
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	return &a, nil
}
