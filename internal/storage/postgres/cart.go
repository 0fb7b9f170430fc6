package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopora/storefront/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. One row
// per (user, product); the primary key enforces line uniqueness.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Items returns the user's cart lines in insertion order.
func (r *CartRepository) Items(ctx context.Context, userID string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY added_at",
		userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart for user %q: %w", userID, err)
	}
	defer rows.Close()

	items := []cart.Item{}
	for rows.Next() {
		var item cart.Item
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Add inserts a line with quantity 1 or increments the existing one. The
// upsert makes repeated adds safe under concurrent requests.
func (r *CartRepository) Add(ctx context.Context, userID, productID string) ([]cart.Item, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + 1`,
		userID, productID)
	if err != nil {
		return nil, fmt.Errorf("adding %q to cart: %w", productID, err)
	}
	return r.Items(ctx, userID)
}

// SetQuantity overwrites a line's quantity; zero removes the line. A missing
// line returns cart.ErrItemNotFound.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, qty int) ([]cart.Item, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if qty == 0 {
		tag, err = r.pool.Exec(ctx,
			"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2",
			userID, productID)
	} else {
		tag, err = r.pool.Exec(ctx,
			"UPDATE cart_items SET quantity = $3 WHERE user_id = $1 AND product_id = $2",
			userID, productID, qty)
	}
	if err != nil {
		return nil, fmt.Errorf("setting quantity of %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, cart.ErrItemNotFound
	}
	return r.Items(ctx, userID)
}

// Remove deletes one line. Removing an absent line is not an error; the
// cart ends up without the product either way.
func (r *CartRepository) Remove(ctx context.Context, userID, productID string) ([]cart.Item, error) {
	_, err := r.pool.Exec(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID)
	if err != nil {
		return nil, fmt.Errorf("removing %q from cart: %w", productID, err)
	}
	return r.Items(ctx, userID)
}

// Clear empties the user's cart. Idempotent.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx,
		"DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}
