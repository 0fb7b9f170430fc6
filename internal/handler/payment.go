package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/shopora/storefront/internal/domain/checkout"
	"github.com/shopora/storefront/internal/domain/user"
)

type checkoutProductRequest struct {
	ProductID string  `json:"productId"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type checkoutSessionRequest struct {
	Products   []checkoutProductRequest `json:"products"`
	CouponCode string                   `json:"couponCode"`
}

type checkoutSessionResponse struct {
	ID            string  `json:"id"`
	TotalAmount   float64 `json:"totalAmount"`
	AppliedCoupon *string `json:"appliedCoupon"`
}

// createCheckoutSession prices the submitted items with an optional coupon.
// An invalid coupon code is not an error; the session is priced without it.
func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutSessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]checkout.LineItem, len(req.Products))
	for i, p := range req.Products {
		items[i] = checkout.LineItem{
			ProductID: p.ProductID,
			Price:     decimal.NewFromFloat(p.Price),
			Quantity:  p.Quantity,
		}
	}

	session, err := h.Checkout.CreateSession(r.Context(), items, req.CouponCode)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := checkoutSessionResponse{
		ID:          session.ID,
		TotalAmount: session.TotalAmount.InexactFloat64(),
	}
	if session.AppliedCoupon != "" {
		resp.AppliedCoupon = &session.AppliedCoupon
	}
	writeJSON(w, http.StatusOK, resp)
}

type checkoutSuccessRequest struct {
	SessionID  string `json:"sessionId"`
	CouponCode string `json:"couponCode"`
}

// checkoutSuccess finalizes a simulated payment: the coupon's usage counter
// is incremented and the user's cart is emptied.
func (h *Handler) checkoutSuccess(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	var req checkoutSuccessRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	if err := h.Checkout.ConfirmSuccess(r.Context(), u.ID, req.SessionID, req.CouponCode); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "payment successful"})
}
