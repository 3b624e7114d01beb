package repository

import (
	"context"
	"fmt"
	"strings"

	"cash-buying-power/models"
	"cash-buying-power/observability"

	"github.com/shopspring/decimal"
)

// SnapshotSource assembles portfolio snapshots from the database.
type SnapshotSource struct {
	repo       *Repository
	securities models.SecurityBuilder
}

// NewSnapshotSource creates a SnapshotSource that builds securities with
// the given builder.
func NewSnapshotSource(repo *Repository, securities models.SecurityBuilder) *SnapshotSource {
	return &SnapshotSource{repo: repo, securities: securities}
}

// Name identifies the source in logs and metrics.
func (s *SnapshotSource) Name() string {
	return "postgres"
}

// LoadSnapshot reads the account's cash book, security prices and open
// orders inside one read-only REPEATABLE READ transaction, so the
// returned portfolio reflects a single committed state.
func (s *SnapshotSource) LoadSnapshot(ctx context.Context, accountID string) (*models.Portfolio, error) {
	if err := s.repo.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveSnapshot(s.Name())

	tx, q, err := s.repo.beginSnapshotTx(ctx)
	if err != nil {
		metrics.RecordSnapshotError(s.Name())
		return nil, err
	}
	defer tx.Rollback(ctx)

	portfolio, err := s.load(ctx, q, accountID)
	if err != nil {
		metrics.RecordSnapshotError(s.Name())
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.RecordSnapshotError(s.Name())
		return nil, fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	return portfolio, nil
}

func (s *SnapshotSource) load(ctx context.Context, q *Repository, accountID string) (*models.Portfolio, error) {
	account, err := q.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}

	portfolio := models.NewPortfolio(account.ID, account.Currency)

	balances, err := q.GetCashBalances(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, c := range balances {
		portfolio.CashBook.Set(c.Currency, c.Amount, c.ConversionRate)
	}

	prices, err := q.GetSecurityPrices(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range prices {
		sec, err := priceSecurity(s.securities, portfolio.CashBook, p)
		if err != nil {
			return nil, fmt.Errorf("failed to build security %s: %w", p.Symbol, err)
		}
		portfolio.AddSecurity(sec)
	}

	orders, err := q.getAllOpenOrders(ctx, accountID)
	if err != nil {
		return nil, err
	}
	portfolio.Orders = orders

	observability.Debug("loaded portfolio snapshot",
		"account_id", accountID,
		"currencies", len(balances),
		"securities", len(prices),
		"open_orders", len(orders))

	return portfolio, nil
}

// priceSecurity builds the security for a stored price row. The builder's
// quote currency takes precedence over the row's, and the conversion rate
// is read for the currency the security ends up quoted in.
func priceSecurity(securities models.SecurityBuilder, book *models.CashBook, p models.SecurityPrice) (*models.Security, error) {
	stored := strings.ToUpper(p.QuoteCurrency)
	probe, err := securities.Security(p.Symbol, stored, decimal.Zero, decimal.Zero)
	if err != nil {
		return nil, err
	}

	quote := probe.QuoteCurrency.Code
	if stored != "" && stored != quote {
		observability.WithSymbol(p.Symbol).Warn("stored quote currency differs from instrument, using instrument quote",
			"stored_quote", stored,
			"instrument_quote", quote)
	}
	return securities.Security(p.Symbol, quote, p.Price, book.ConversionRate(quote))
}
