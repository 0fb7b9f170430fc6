package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopora/storefront/internal/domain/coupon"
)

func seedCoupon(e *env, code string, pct int64) *coupon.Coupon {
	c := &coupon.Coupon{
		ID:                 "c-" + code,
		Code:               code,
		DiscountPercentage: decimal.NewFromInt(pct),
		ExpirationDate:     time.Now().Add(24 * time.Hour),
		IsActive:           true,
	}
	e.coupons.byCode[code] = c
	return c
}

func TestCreateCoupon(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/coupons", e.tokenFor(t, e.admin), map[string]any{
		"code":               "summer25",
		"discountPercentage": 25.0,
		"expirationDate":     time.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"usageLimit":         100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[couponResponse](t, rec)
	// Codes are stored uppercased.
	assert.Equal(t, "SUMMER25", resp.Code)
	assert.Equal(t, 25.0, resp.DiscountPercentage)
	assert.True(t, resp.IsActive)
	require.NotNil(t, resp.UsageLimit)
	assert.Equal(t, 100, *resp.UsageLimit)
}

func TestCreateCoupon_Validation(t *testing.T) {
	e := newEnv(t)
	token := e.tokenFor(t, e.admin)
	future := time.Now().Add(time.Hour).Format(time.RFC3339)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing code", map[string]any{"discountPercentage": 10.0, "expirationDate": future}},
		{"zero discount", map[string]any{"code": "X", "discountPercentage": 0.0, "expirationDate": future}},
		{"discount over 100", map[string]any{"code": "X", "discountPercentage": 150.0, "expirationDate": future}},
		{"past expiry", map[string]any{"code": "X", "discountPercentage": 10.0,
			"expirationDate": time.Now().Add(-time.Hour).Format(time.RFC3339)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/coupons", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateCoupon_DuplicateCode(t *testing.T) {
	e := newEnv(t)
	seedCoupon(e, "TAKEN", 10)

	rec := e.do(t, http.MethodPost, "/api/coupons", e.tokenFor(t, e.admin), map[string]any{
		"code":               "taken",
		"discountPercentage": 10.0,
		"expirationDate":     time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListCoupons(t *testing.T) {
	e := newEnv(t)
	seedCoupon(e, "ACTIVE", 10)
	inactive := seedCoupon(e, "INACTIVE", 10)
	inactive.IsActive = false

	rec := e.do(t, http.MethodGet, "/api/coupons", e.tokenFor(t, e.admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	coupons := decodeBody[[]couponResponse](t, rec)
	require.Len(t, coupons, 1)
	assert.Equal(t, "ACTIVE", coupons[0].Code)
}

func TestValidateCoupon(t *testing.T) {
	e := newEnv(t)
	seedCoupon(e, "SAVE10", 10)
	token := e.tokenFor(t, e.customer)

	// Lowercase input resolves to the stored uppercase code.
	rec := e.do(t, http.MethodPost, "/api/coupons/validate", token, map[string]string{"code": "save10"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[validateCouponResponse](t, rec)
	assert.Equal(t, "coupon is valid", resp.Message)
	assert.Equal(t, "SAVE10", resp.Coupon.Code)
}

func TestValidateCoupon_Rejections(t *testing.T) {
	e := newEnv(t)
	expired := seedCoupon(e, "OLD", 10)
	expired.ExpirationDate = time.Now().Add(-time.Hour)
	exhausted := seedCoupon(e, "USED", 10)
	limit := 1
	exhausted.UsageLimit = &limit
	exhausted.UsedCount = 1
	token := e.tokenFor(t, e.customer)

	tests := []struct {
		name string
		code string
		want int
	}{
		{"empty code", "", http.StatusBadRequest},
		{"unknown code", "GHOST", http.StatusNotFound},
		{"expired", "OLD", http.StatusNotFound},
		{"exhausted", "USED", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/coupons/validate", token,
				map[string]string{"code": tt.code})
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestDeleteCoupon(t *testing.T) {
	e := newEnv(t)
	c := seedCoupon(e, "SAVE10", 10)

	rec := e.do(t, http.MethodDelete, "/api/coupons/"+c.ID, e.tokenFor(t, e.admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, e.coupons.byCode)
}
