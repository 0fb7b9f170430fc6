package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopora/storefront/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

const couponColumns = `id, code, discount_percentage, minimum_amount, max_discount,
	expiration_date, is_active, usage_limit, used_count, created_at`

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create persists a new coupon. The code must already be normalized.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO coupons (id, code, discount_percentage, minimum_amount, max_discount,
			expiration_date, is_active, usage_limit, used_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		c.ID, coupon.NormalizeCode(c.Code), c.DiscountPercentage, c.MinimumAmount,
		c.MaxDiscount, c.ExpirationDate, c.IsActive, c.UsageLimit, c.UsedCount,
	).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return coupon.ErrCodeTaken
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// FindByCode looks up a coupon by its normalized code. The usability
// predicate (active, expiry, usage limit) is evaluated by the caller so that
// validation and checkout share one implementation.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE code = $1", code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return c, nil
}

// ListActive returns all active, unexpired coupons.
func (r *CouponRepository) ListActive(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE is_active AND expiration_date > now() ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing active coupons: %w", err)
	}
	defer rows.Close()

	var coupons []coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}
	return coupons, rows.Err()
}

// ListCodes returns every stored code, for seeding the validator's bloom
// guard.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT code FROM coupons")
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scanning coupon code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// Delete removes a coupon by ID.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM coupons WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Redeem increments used_count by one, guarded in the same statement by the
// usage limit. Concurrent redemptions of the last slot race at the row lock;
// exactly one wins, the rest match no row and get ErrUsageLimitReached.
func (r *CouponRepository) Redeem(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND (usage_limit IS NULL OR used_count < usage_limit)`,
		code)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish an exhausted coupon from an unknown code.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM coupons WHERE code = $1)", code,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking coupon %q: %w", code, err)
		}
		if !exists {
			return coupon.ErrNotFound
		}
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.MinimumAmount,
		&c.MaxDiscount, &c.ExpirationDate, &c.IsActive, &c.UsageLimit,
		&c.UsedCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
