package repository

import (
	"context"
	"fmt"

	"cash-buying-power/models"
	"cash-buying-power/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, symbol, quantity, order_type, limit_price, stop_price, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.Symbol, &o.Quantity, &o.Type, &o.LimitPrice, &o.StopPrice, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrders returns the account's orders, newest first. openOnly restricts
// the result to orders that are still working.
func (r *Repository) GetOrders(ctx context.Context, accountID string, openOnly bool, limit int) ([]*models.Order, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "orders")

	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error

	if openOnly {
		rows, err = r.db.Query(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE account_id = $1 AND status IN ($2, $3)
			ORDER BY created_at DESC
			LIMIT $4
		`, accountID, models.OrderStatusSubmitted, models.OrderStatusPartiallyFilled, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT `+orderColumns+`
			FROM orders
			WHERE account_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, accountID, limit)
	}
	if err != nil {
		metrics.RecordDBError("select", "orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			metrics.RecordDBError("select", "orders")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// getAllOpenOrders returns every working order of the account, unbounded.
func (r *Repository) getAllOpenOrders(ctx context.Context, accountID string) ([]*models.Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE account_id = $1 AND status IN ($2, $3)
		ORDER BY created_at
	`, accountID, models.OrderStatusSubmitted, models.OrderStatusPartiallyFilled)
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// GetOrder returns a single order by ID
func (r *Repository) GetOrder(ctx context.Context, accountID string, id uuid.UUID) (*models.Order, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}

	o, err := scanOrder(r.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE account_id = $1 AND id = $2
	`, accountID, id))

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "orders")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return o, nil
}

// CreateOrder creates a new order record
func (r *Repository) CreateOrder(ctx context.Context, accountID string, order *models.Order) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "orders")

	_, err := r.db.Exec(ctx, `
		INSERT INTO orders (id, account_id, symbol, quantity, order_type, limit_price, stop_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, order.ID, accountID, order.Symbol, order.Quantity, order.Type, order.LimitPrice, order.StopPrice, order.Status, order.CreatedAt, order.UpdatedAt)

	if err != nil {
		metrics.RecordDBError("insert", "orders")
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// UpdateOrderStatus moves an open order to status. It reports whether an
// open order was changed.
func (r *Repository) UpdateOrderStatus(ctx context.Context, accountID string, id uuid.UUID, status models.OrderStatus) (bool, error) {
	if err := r.checkDB(); err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE account_id = $1 AND id = $2
		  AND status IN ('submitted', 'partially_filled')
	`, accountID, id, status)
	if err != nil {
		observability.GetMetrics().RecordDBError("update", "orders")
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
