package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a code does not exist, is inactive, or is
	// past its expiration date. The three cases are deliberately
	// indistinguishable to callers.
	ErrNotFound = errors.New("coupon not found or expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its
	// allowed redemptions.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCodeTaken is returned when creating a coupon with an existing code.
	ErrCodeTaken = errors.New("coupon code already exists")
)

var hundred = decimal.NewFromInt(100)

// Coupon is a percentage discount code. UsageLimit nil means unlimited.
// Invariant: UsedCount <= UsageLimit whenever UsageLimit is set; the storage
// layer enforces it with a conditional increment.
type Coupon struct {
	ID                 string
	Code               string
	DiscountPercentage decimal.Decimal
	MinimumAmount      decimal.Decimal
	MaxDiscount        *decimal.Decimal
	ExpirationDate     time.Time
	IsActive           bool
	UsageLimit         *int
	UsedCount          int
	CreatedAt          time.Time
}

// Usable reports whether the coupon can be applied at the given instant.
// It returns ErrNotFound for inactive or expired coupons and
// ErrUsageLimitReached for exhausted ones. Both the standalone validation
// endpoint and checkout go through this predicate so they cannot disagree.
func (c *Coupon) Usable(now time.Time) error {
	if !c.IsActive || !now.Before(c.ExpirationDate) {
		return ErrNotFound
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	return nil
}

// DiscountFor computes the discount amount for the given total, rounded
// half away from zero to whole currency units. MaxDiscount is stored and
// reported but does not cap the amount here.
func (c *Coupon) DiscountFor(total decimal.Decimal) decimal.Decimal {
	return total.Mul(c.DiscountPercentage).Div(hundred).Round(0)
}

// NormalizeCode uppercases a coupon code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository defines coupon persistence. Redeem must be a single atomic
// conditional update: increment used_count only while it is below the usage
// limit (or unconditionally for unlimited coupons), returning
// ErrUsageLimitReached otherwise.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	ListActive(ctx context.Context) ([]Coupon, error)
	ListCodes(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Redeem(ctx context.Context, code string) error
}
