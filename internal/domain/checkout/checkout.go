package checkout

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopora/storefront/internal/domain/cart"
	"github.com/shopora/storefront/internal/domain/coupon"
)

// ErrEmptyItems is returned when a session is requested with no line items.
var ErrEmptyItems = errors.New("invalid or empty products array")

// Config holds the bonus-coupon issuance parameters. The defaults mirror the
// store's long-standing promotion: spend 200 after discounts, get a
// single-use 10%-off code valid for 30 days.
type Config struct {
	BonusThreshold  decimal.Decimal
	BonusPercentage decimal.Decimal
	BonusValidity   time.Duration
	BonusUsageLimit int
	BonusCodePrefix string
}

// DefaultConfig returns the production bonus parameters.
func DefaultConfig() Config {
	return Config{
		BonusThreshold:  decimal.NewFromInt(200),
		BonusPercentage: decimal.NewFromInt(10),
		BonusValidity:   30 * 24 * time.Hour,
		BonusUsageLimit: 1,
		BonusCodePrefix: "GIFT",
	}
}

// LineItem is a priced cart line submitted for checkout.
type LineItem struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Session is the simulated checkout session. AppliedCoupon is empty when no
// valid coupon was applied. The ID is an opaque token; uniqueness is
// informal, nothing is keyed by it.
type Session struct {
	ID            string
	TotalAmount   decimal.Decimal
	AppliedCoupon string
}

// Service simulates the checkout flow: it prices a cart with an optional
// coupon, issues bonus coupons above the spend threshold, and on confirmed
// success redeems the coupon and clears the cart.
type Service struct {
	coupons    *coupon.Validator
	couponRepo coupon.Repository
	carts      cart.Repository
	cfg        Config
	now        func() time.Time
}

// NewService creates a checkout Service.
func NewService(coupons *coupon.Validator, couponRepo coupon.Repository, carts cart.Repository, cfg Config) *Service {
	return &Service{
		coupons:    coupons,
		couponRepo: couponRepo,
		carts:      carts,
		cfg:        cfg,
		now:        time.Now,
	}
}

// CreateSession computes the discounted total for the given items. An
// invalid coupon code does not fail the session; it is simply not applied.
// When the post-discount total reaches the bonus threshold, a fresh
// single-use bonus coupon is persisted as a side effect.
func (s *Service) CreateSession(ctx context.Context, items []LineItem, couponCode string) (*Session, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	total := decimal.Zero
	for _, item := range items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(qty))))
	}

	applied := ""
	if couponCode != "" {
		c, err := s.coupons.Validate(ctx, couponCode)
		switch {
		case err == nil:
			total = total.Sub(c.DiscountFor(total))
			applied = c.Code
		case errors.Is(err, coupon.ErrNotFound), errors.Is(err, coupon.ErrUsageLimitReached):
			// Invalid coupon: price the session without it.
		default:
			return nil, errors.Wrap(err, "validate coupon")
		}
	}

	if total.GreaterThanOrEqual(s.cfg.BonusThreshold) {
		if err := s.issueBonusCoupon(ctx); err != nil {
			// Bonus issuance is best-effort; the session itself succeeds.
			zctx.From(ctx).Warn("bonus coupon issuance failed", zap.Error(err))
		}
	}

	return &Session{
		ID:            "session_" + randomToken(10),
		TotalAmount:   total,
		AppliedCoupon: applied,
	}, nil
}

// ConfirmSuccess finalizes a simulated payment: it redeems the coupon (an
// atomic conditional increment of its usage counter) and empties the user's
// cart. The cart clear is idempotent; confirming twice leaves it empty.
func (s *Service) ConfirmSuccess(ctx context.Context, userID, sessionID, couponCode string) error {
	if couponCode != "" {
		err := s.couponRepo.Redeem(ctx, coupon.NormalizeCode(couponCode))
		switch {
		case err == nil:
		case errors.Is(err, coupon.ErrNotFound):
			// Unknown code on confirmation is ignored, matching session
			// creation's tolerance of invalid codes.
		case errors.Is(err, coupon.ErrUsageLimitReached):
			return err
		default:
			return errors.Wrapf(err, "redeem coupon for session %s", sessionID)
		}
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

func (s *Service) issueBonusCoupon(ctx context.Context) error {
	limit := s.cfg.BonusUsageLimit
	c := &coupon.Coupon{
		ID:                 uuid.New().String(),
		Code:               s.cfg.BonusCodePrefix + randomCode(6),
		DiscountPercentage: s.cfg.BonusPercentage,
		ExpirationDate:     s.now().Add(s.cfg.BonusValidity),
		IsActive:           true,
		UsageLimit:         &limit,
	}
	if err := s.couponRepo.Create(ctx, c); err != nil {
		return err
	}
	s.coupons.Register(c.Code)

	zctx.From(ctx).Info("bonus coupon created", zap.String("code", c.Code))
	return nil
}

const (
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// randomCode returns n random uppercase alphanumeric characters.
func randomCode(n int) string {
	return randomFrom(codeAlphabet, n)
}

// randomToken returns n random lowercase alphanumeric characters.
func randomToken(n int) string {
	return randomFrom(tokenAlphabet, n)
}

func randomFrom(alphabet string, n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}
