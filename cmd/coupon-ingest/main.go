// Command coupon-ingest loads promo code lists (one code per line,
// gzip-compressed) into the coupons table. Codes are deduplicated across
// files with a bloom filter before insertion; every ingested code gets the
// same discount rule, configurable by flags.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/shopora/storefront/internal/domain/coupon"
	"github.com/shopora/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minCodeLen    = 4
	maxCodeLen    = 16
)

func main() {
	var (
		dataDir     string
		databaseURL string
		discount    float64
		validity    time.Duration
		usageLimit  int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz promo code lists")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Float64Var(&discount, "discount", 10, "discount percentage for ingested codes")
	flag.DurationVar(&validity, "validity", 365*24*time.Hour, "lifetime of ingested codes")
	flag.IntVar(&usageLimit, "usage-limit", 0, "usage limit per code (0 = unlimited)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, discount, validity, usageLimit); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, discount float64, validity time.Duration, usageLimit int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list code files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz files found in %s", dataDir)
	}

	slog.Info("collecting codes", slog.Int("files", len(files)))

	codes, err := collectCodes(ctx, files)
	if err != nil {
		return errors.Wrap(err, "collect codes")
	}

	slog.Info("unique codes collected", slog.Int("count", len(codes)))

	if len(codes) == 0 {
		slog.Info("nothing to insert")
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, pool, codes, discount, validity, usageLimit); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// collectCodes streams every file concurrently and funnels codes through a
// single deduplicating collector. The bloom filter answers "seen before"
// without holding every code twice; its false positives drop the occasional
// code, which is acceptable for bulk promo imports.
func collectCodes(ctx context.Context, files []string) ([]string, error) {
	lines := make(chan string, 4096)

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(streamFile(gctx, i, path, lines))
	}

	done := make(chan struct{})
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var codes []string
	go func() {
		defer close(done)
		for code := range lines {
			if seen.TestString(code) {
				continue
			}
			seen.AddString(code)
			codes = append(codes, code)
		}
	}()

	err := g.Wait()
	close(lines)
	<-done
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// streamFile reads one gzip file and sends normalized, shape-valid codes to
// out.
func streamFile(ctx context.Context, idx int, path string, out chan<- string) func() error {
	return func() error {
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		gz, err := pgzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()

		var count uint64
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}

			code := coupon.NormalizeCode(scanner.Text())
			if len(code) < minCodeLen || len(code) > maxCodeLen || !isAlphanumeric(code) {
				continue
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("scan progress", slog.Int("file", idx+1), slog.Uint64("codes", count))
			}

			select {
			case out <- code:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("scan complete", slog.Int("file", idx+1), slog.Uint64("total_codes", count))
		return nil
	}
}

func isAlphanumeric(code string) bool {
	return !strings.ContainsFunc(code, func(r rune) bool {
		return (r < 'A' || r > 'Z') && (r < '0' || r > '9')
	})
}

// writeCoupons inserts the codes with the shared discount rule. Existing
// codes are left untouched.
func writeCoupons(ctx context.Context, pool *pgxpool.Pool, codes []string, discount float64, validity time.Duration, usageLimit int) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	pct := decimal.NewFromFloat(discount)
	expiresAt := time.Now().Add(validity)

	var limit *int
	if usageLimit > 0 {
		limit = &usageLimit
	}

	for i, code := range codes {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (id, code, discount_percentage, minimum_amount,
				expiration_date, is_active, usage_limit)
			VALUES ($1, $2, $3, 0, $4, TRUE, $5)
			ON CONFLICT (code) DO NOTHING`,
			uuid.New().String(), code, pct, expiresAt, limit)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", code)
		}

		if (i+1)%10_000 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
