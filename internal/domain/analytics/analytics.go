package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const dailyWindowDays = 7

// DailyStat is one day of order volume and revenue.
type DailyStat struct {
	Date    string          `json:"date"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Summary is the store-wide dashboard payload.
type Summary struct {
	Users         int64
	Products      int64
	Orders        int64
	Revenue       decimal.Decimal
	AvgOrderValue decimal.Decimal
	Daily         []DailyStat
}

// Repository defines the aggregate queries behind the dashboard.
type Repository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountProducts(ctx context.Context) (int64, error)
	CountOrders(ctx context.Context) (int64, error)
	RevenueStats(ctx context.Context) (total, avg decimal.Decimal, err error)
	DailyOrders(ctx context.Context, from, to time.Time) ([]DailyStat, error)
}

// Service computes the analytics summary. The independent aggregate queries
// run concurrently.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an analytics Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Summary gathers counts, revenue, and a zero-filled series covering the
// last seven days including today.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var sum Summary

	end := s.now()
	start := end.AddDate(0, 0, -(dailyWindowDays - 1))

	var daily []DailyStat
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sum.Users, err = s.repo.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		sum.Products, err = s.repo.CountProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		sum.Orders, err = s.repo.CountOrders(gctx)
		return err
	})
	g.Go(func() (err error) {
		sum.Revenue, sum.AvgOrderValue, err = s.repo.RevenueStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		daily, err = s.repo.DailyOrders(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "gather analytics")
	}

	sum.Daily = fillDaily(daily, start, end)
	return &sum, nil
}

// fillDaily expands sparse per-day rows into a dense series with zeroes for
// days that had no orders.
func fillDaily(stats []DailyStat, start, end time.Time) []DailyStat {
	byDate := make(map[string]DailyStat, len(stats))
	for _, st := range stats {
		byDate[st.Date] = st
	}

	var out []DailyStat
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		if st, ok := byDate[date]; ok {
			out = append(out, st)
			continue
		}
		out = append(out, DailyStat{Date: date, Revenue: decimal.Zero})
	}
	return out
}
