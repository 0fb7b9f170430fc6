package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopora/storefront/internal/domain/analytics"
)

var _ analytics.Repository = (*AnalyticsRepository)(nil)

// AnalyticsRepository implements analytics.Repository backed by PostgreSQL.
// All queries are read-only aggregates.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns an AnalyticsRepository that uses the given
// pool.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) CountUsers(ctx context.Context) (int64, error) {
	return r.count(ctx, "SELECT count(*) FROM users")
}

func (r *AnalyticsRepository) CountProducts(ctx context.Context) (int64, error) {
	return r.count(ctx, "SELECT count(*) FROM products WHERE is_active")
}

func (r *AnalyticsRepository) CountOrders(ctx context.Context) (int64, error) {
	return r.count(ctx, "SELECT count(*) FROM orders")
}

// RevenueStats returns the total and average order value across all orders.
func (r *AnalyticsRepository) RevenueStats(ctx context.Context) (total, avg decimal.Decimal, err error) {
	err = r.pool.QueryRow(ctx,
		"SELECT coalesce(sum(total_price), 0), coalesce(avg(total_price), 0) FROM orders",
	).Scan(&total, &avg)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("querying revenue stats: %w", err)
	}
	return total, avg, nil
}

// DailyOrders returns per-day order counts and revenue for whole days from
// the day of from through the day of to. Days without orders are absent; the
// service zero-fills them.
func (r *AnalyticsRepository) DailyOrders(ctx context.Context, from, to time.Time) ([]analytics.DailyStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(created_at, 'YYYY-MM-DD') AS day,
			count(*), coalesce(sum(total_price), 0)
		FROM orders
		WHERE created_at >= date_trunc('day', $1::timestamptz)
			AND created_at < date_trunc('day', $2::timestamptz) + interval '1 day'
		GROUP BY day
		ORDER BY day`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("querying daily orders: %w", err)
	}
	defer rows.Close()

	var stats []analytics.DailyStat
	for rows.Next() {
		var s analytics.DailyStat
		if err := rows.Scan(&s.Date, &s.Orders, &s.Revenue); err != nil {
			return nil, fmt.Errorf("scanning daily stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *AnalyticsRepository) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return n, nil
}
