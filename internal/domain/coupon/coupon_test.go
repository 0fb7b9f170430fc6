package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestUsable(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name    string
		coupon  Coupon
		wantErr error
	}{
		{
			name:   "active and unexpired",
			coupon: Coupon{IsActive: true, ExpirationDate: future},
		},
		{
			name:    "inactive",
			coupon:  Coupon{IsActive: false, ExpirationDate: future},
			wantErr: ErrNotFound,
		},
		{
			name:    "expired",
			coupon:  Coupon{IsActive: true, ExpirationDate: past},
			wantErr: ErrNotFound,
		},
		{
			name:    "expiring exactly now",
			coupon:  Coupon{IsActive: true, ExpirationDate: now},
			wantErr: ErrNotFound,
		},
		{
			name: "usage limit exhausted",
			coupon: Coupon{
				IsActive:       true,
				ExpirationDate: future,
				UsageLimit:     intPtr(3),
				UsedCount:      3,
			},
			wantErr: ErrUsageLimitReached,
		},
		{
			name: "usage limit with remaining slots",
			coupon: Coupon{
				IsActive:       true,
				ExpirationDate: future,
				UsageLimit:     intPtr(3),
				UsedCount:      2,
			},
		},
		{
			name: "unlimited usage",
			coupon: Coupon{
				IsActive:       true,
				ExpirationDate: future,
				UsedCount:      1_000_000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coupon.Usable(now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDiscountFor(t *testing.T) {
	tests := []struct {
		name  string
		pct   string
		total string
		want  string
	}{
		{"ten percent of 1000", "10", "1000", "100"},
		{"rounds half up", "10", "255", "26"},
		{"rounds down below half", "10", "254", "25"},
		{"fractional total", "10", "99.99", "10"},
		{"full discount", "100", "42", "42"},
		{"zero total", "25", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Coupon{DiscountPercentage: decimal.RequireFromString(tt.pct)}
			got := c.DiscountFor(decimal.RequireFromString(tt.total))
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got),
				"want %s, got %s", tt.want, got)
		})
	}
}

func TestDiscountFor_MaxDiscountNotApplied(t *testing.T) {
	// MaxDiscount is informational only; the computed amount may exceed it.
	maxDiscount := decimal.NewFromInt(5)
	c := Coupon{
		DiscountPercentage: decimal.NewFromInt(50),
		MaxDiscount:        &maxDiscount,
	}

	got := c.DiscountFor(decimal.NewFromInt(1000))
	assert.True(t, decimal.NewFromInt(500).Equal(got))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("save10"))
	assert.Equal(t, "SAVE10", NormalizeCode("  Save10 "))
	assert.Equal(t, "", NormalizeCode("   "))
}
