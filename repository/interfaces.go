package repository

import (
	"context"
	"time"

	"cash-buying-power/models"

	"github.com/google/uuid"
)

// RepositoryInterface defines all repository operations
type RepositoryInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Accounts
	EnsureAccount(ctx context.Context, id, currency string) error
	GetAccount(ctx context.Context, id string) (*models.Account, error)

	// Cash
	GetCashBalances(ctx context.Context, accountID string) ([]models.Cash, error)
	UpsertCashBalance(ctx context.Context, accountID string, cash models.Cash) error
	UpdateConversionRate(ctx context.Context, rate models.ExchangeRate) error

	// Prices
	GetSecurityPrices(ctx context.Context) ([]models.SecurityPrice, error)
	UpsertSecurityPrice(ctx context.Context, price *models.SecurityPrice) error

	// Orders
	GetOrders(ctx context.Context, accountID string, openOnly bool, limit int) ([]*models.Order, error)
	GetOrder(ctx context.Context, accountID string, id uuid.UUID) (*models.Order, error)
	CreateOrder(ctx context.Context, accountID string, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, accountID string, id uuid.UUID, status models.OrderStatus) (bool, error)

	// Evaluations
	CreateEvaluation(ctx context.Context, eval *models.Evaluation) error
	GetEvaluations(ctx context.Context, accountID string, limit int) ([]models.Evaluation, error)

	// Rate cache
	GetCachedRate(ctx context.Context, from, to string) (*models.ExchangeRate, error)
	SetCachedRate(ctx context.Context, rate models.ExchangeRate, ttl time.Duration) error
	InvalidateRate(ctx context.Context, from, to string) error
	CleanExpiredRates(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var _ RepositoryInterface = (*Repository)(nil)
