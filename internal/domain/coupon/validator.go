package coupon

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

const (
	filterCapacity = 1_000_000
	filterFPR      = 0.001
)

// Validator resolves a coupon code to a usable Coupon. It fronts the
// repository with an optional bloom filter so garbage codes submitted at
// checkout are rejected without a database round trip. False positives fall
// through to the lookup; the filter never rejects a real code that was
// registered with it.
type Validator struct {
	repo Repository
	now  func() time.Time

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewValidator creates a Validator backed by the given repository. The bloom
// guard stays disabled until WarmFilter is called.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// WarmFilter builds the bloom guard from every code currently stored. Codes
// created afterwards must be added via Register.
func (v *Validator) WarmFilter(ctx context.Context) error {
	codes, err := v.repo.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list coupon codes")
	}

	filter := bloom.NewWithEstimates(filterCapacity, filterFPR)
	for _, code := range codes {
		filter.AddString(code)
	}

	v.mu.Lock()
	v.filter = filter
	v.mu.Unlock()
	return nil
}

// Register adds a newly created code to the bloom guard. No-op when the
// filter is not warmed.
func (v *Validator) Register(code string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.filter != nil {
		v.filter.AddString(NormalizeCode(code))
	}
}

// Validate normalizes the code, resolves it, and checks the usability
// predicate. It returns the coupon so callers can compute discounts from the
// same row the predicate saw.
func (v *Validator) Validate(ctx context.Context, code string) (*Coupon, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, ErrNotFound
	}

	v.mu.RLock()
	filter := v.filter
	v.mu.RUnlock()
	if filter != nil && !filter.TestString(normalized) {
		return nil, ErrNotFound
	}

	c, err := v.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := c.Usable(v.now()); err != nil {
		return nil, err
	}
	return c, nil
}
