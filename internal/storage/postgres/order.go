package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopora/storefront/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

const orderColumns = `id, user_id, items, shipping_address, payment_method,
	items_price, tax_price, shipping_price, total_price,
	is_paid, paid_at, payment_result, is_delivered, delivered_at,
	status, tracking_number, created_at`

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and decrements stock for every line item inside
// one transaction. Each decrement is conditional on sufficient stock; a
// decrement matching no row aborts the transaction with
// order.InsufficientStockError, so either the order and all decrements
// commit together or nothing is written.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, items, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		o.ID, o.UserID, items, address, o.PaymentMethod,
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice, o.Status,
	).Scan(&o.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		tag, err := tx.Exec(ctx,
			"UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2",
			item.ProductID, item.Quantity)
		if err != nil {
			return fmt.Errorf("decrementing stock for %q: %w", item.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			return &order.InsufficientStockError{
				ProductID: item.ProductID,
				Name:      item.Name,
				Requested: item.Quantity,
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// ListByUser returns one page of the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, page, limit int) (*order.Page, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT count(*) FROM orders WHERE user_id = $1", userID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting orders for user %q: %w", userID, err)
	}

	orders, err := r.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	return &order.Page{
		Orders:      orders,
		TotalPages:  order.TotalPagesFor(total, limit),
		CurrentPage: page,
		Total:       total,
	}, nil
}

// List returns one page of all orders, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) (*order.Page, error) {
	where := "TRUE"
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = "status = $1"
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT count(*) FROM orders WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	orders, err := r.queryOrders(ctx, fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	return &order.Page{
		Orders:      orders,
		TotalPages:  order.TotalPagesFor(total, f.Limit),
		CurrentPage: f.Page,
		Total:       total,
	}, nil
}

// MarkPaid sets the payment flags and stores the payment result snapshot.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, res order.PaymentResult) (*order.Order, error) {
	result, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshaling payment result: %w", err)
	}

	o, err := scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET
			is_paid = TRUE,
			paid_at = coalesce(paid_at, now()),
			payment_result = $2
		WHERE id = $1
		RETURNING `+orderColumns,
		id, result))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("marking order %q paid: %w", id, err)
	}
	return o, nil
}

// UpdateStatus advances the order status. An empty trackingNumber keeps the
// stored one; the delivered status additionally sets the delivery flags,
// which never move backwards.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status, trackingNumber string) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET
			status = $2,
			tracking_number = coalesce(nullif($3, ''), tracking_number),
			is_delivered = is_delivered OR $2 = 'delivered',
			delivered_at = CASE
				WHEN $2 = 'delivered' AND delivered_at IS NULL THEN now()
				ELSE delivered_at
			END
		WHERE id = $1
		RETURNING `+orderColumns,
		id, status, trackingNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return o, nil
}

func (r *OrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o       order.Order
		items   []byte
		address []byte
		payment []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &items, &address, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &o.PaidAt, &payment, &o.IsDelivered, &o.DeliveredAt,
		&o.Status, &o.TrackingNumber, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if payment != nil {
		o.PaymentResult = &order.PaymentResult{}
		if err := json.Unmarshal(payment, o.PaymentResult); err != nil {
			return nil, fmt.Errorf("unmarshaling payment result: %w", err)
		}
	}
	return &o, nil
}
