package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopora/storefront/internal/domain/coupon"
)

type couponResponse struct {
	ID                 string    `json:"id"`
	Code               string    `json:"code"`
	DiscountPercentage float64   `json:"discountPercentage"`
	MinimumAmount      float64   `json:"minimumAmount"`
	MaxDiscount        *float64  `json:"maxDiscount,omitempty"`
	ExpirationDate     time.Time `json:"expirationDate"`
	IsActive           bool      `json:"isActive"`
	UsageLimit         *int      `json:"usageLimit,omitempty"`
	UsedCount          int       `json:"usedCount"`
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	resp := couponResponse{
		ID:                 c.ID,
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage.InexactFloat64(),
		MinimumAmount:      c.MinimumAmount.InexactFloat64(),
		ExpirationDate:     c.ExpirationDate,
		IsActive:           c.IsActive,
		UsageLimit:         c.UsageLimit,
		UsedCount:          c.UsedCount,
	}
	if c.MaxDiscount != nil {
		v := c.MaxDiscount.InexactFloat64()
		resp.MaxDiscount = &v
	}
	return resp
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.ListActive(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out := make([]couponResponse, len(coupons))
	for i := range coupons {
		out[i] = toCouponResponse(&coupons[i])
	}
	writeJSON(w, http.StatusOK, out)
}

type createCouponRequest struct {
	Code               string    `json:"code"`
	DiscountPercentage float64   `json:"discountPercentage"`
	MinimumAmount      float64   `json:"minimumAmount"`
	MaxDiscount        *float64  `json:"maxDiscount"`
	ExpirationDate     time.Time `json:"expirationDate"`
	UsageLimit         *int      `json:"usageLimit"`
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.DiscountPercentage <= 0 || req.DiscountPercentage > 100 {
		writeError(w, http.StatusBadRequest, "discountPercentage must be between 0 and 100")
		return
	}
	if req.ExpirationDate.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "expirationDate must be in the future")
		return
	}

	c := &coupon.Coupon{
		ID:                 uuid.New().String(),
		Code:               coupon.NormalizeCode(req.Code),
		DiscountPercentage: decimal.NewFromFloat(req.DiscountPercentage),
		MinimumAmount:      decimal.NewFromFloat(req.MinimumAmount),
		ExpirationDate:     req.ExpirationDate,
		IsActive:           true,
		UsageLimit:         req.UsageLimit,
	}
	if req.MaxDiscount != nil {
		d := decimal.NewFromFloat(*req.MaxDiscount)
		c.MaxDiscount = &d
	}

	if err := h.Coupons.Create(r.Context(), c); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.Validator.Register(c.Code)

	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

type validateCouponRequest struct {
	Code string `json:"code"`
}

type validateCouponResponse struct {
	Message string         `json:"message"`
	Coupon  couponResponse `json:"coupon"`
}

// validateCoupon checks a code with the same predicate checkout applies, so
// a code that validates here prices identically at session time.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decode(r, &req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	c, err := h.Validator.Validate(r.Context(), req.Code)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateCouponResponse{
		Message: "coupon is valid",
		Coupon:  toCouponResponse(c),
	})
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.Coupons.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "coupon deleted"})
}
