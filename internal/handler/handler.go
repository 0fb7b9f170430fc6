// Package handler exposes the HTTP API. Handlers parse requests, delegate to
// the domain services, and map domain errors onto the JSON error envelope.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/shopora/storefront/internal/auth"
	"github.com/shopora/storefront/internal/domain/analytics"
	"github.com/shopora/storefront/internal/domain/cart"
	"github.com/shopora/storefront/internal/domain/checkout"
	"github.com/shopora/storefront/internal/domain/coupon"
	"github.com/shopora/storefront/internal/domain/order"
	"github.com/shopora/storefront/internal/domain/product"
	"github.com/shopora/storefront/internal/domain/user"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SecureCookies marks auth cookies Secure; disabled for local plain-HTTP
	// development.
	SecureCookies bool
}

// Cache is the subset of the redis cache the handlers use. Misses are
// reported as rediscache.ErrCacheMiss.
type Cache interface {
	FeaturedProducts(ctx context.Context) ([]product.Product, error)
	SetFeaturedProducts(ctx context.Context, products []product.Product) error
	InvalidateFeatured(ctx context.Context) error
	StoreRefreshToken(ctx context.Context, userID, token string) error
	RefreshToken(ctx context.Context, userID string) (string, error)
	DeleteRefreshToken(ctx context.Context, userID string) error
}

// Deps are the domain dependencies the Handler delegates to.
type Deps struct {
	Users     user.Repository
	Tokens    *auth.TokenManager
	Cache     Cache
	Products  product.Repository
	Carts     cart.Repository
	CartView  *cart.Service
	Coupons   coupon.Repository
	Validator *coupon.Validator
	Orders    *order.Service
	Checkout  *checkout.Service
	Analytics *analytics.Service
}

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	cfg Config
	Deps
}

// New constructs a Handler with the required domain dependencies.
func New(cfg Config, deps Deps) *Handler {
	return &Handler{cfg: cfg, Deps: deps}
}

// Register mounts every API route on the mux. Authentication and role checks
// wrap individual handlers; everything lives under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	// Auth.
	mux.HandleFunc("POST /api/auth/signup", h.signup)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.HandleFunc("POST /api/auth/logout", h.requireAuth(h.logout))
	mux.HandleFunc("POST /api/auth/refresh", h.refreshToken)
	mux.HandleFunc("GET /api/auth/profile", h.requireAuth(h.profile))
	mux.HandleFunc("PUT /api/auth/profile", h.requireAuth(h.updateProfile))

	// Catalog.
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/featured", h.featuredProducts)
	mux.HandleFunc("GET /api/products/recommended", h.recommendedProducts)
	mux.HandleFunc("GET /api/products/category/{category}", h.productsByCategory)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.HandleFunc("POST /api/products", h.requireAdmin(h.createProduct))
	mux.HandleFunc("PUT /api/products/{id}", h.requireAdmin(h.updateProduct))
	mux.HandleFunc("DELETE /api/products/{id}", h.requireAdmin(h.deleteProduct))
	mux.HandleFunc("PATCH /api/products/{id}/featured", h.requireAdmin(h.toggleFeatured))
	mux.HandleFunc("GET /api/products/{id}/reviews", h.listReviews)
	mux.HandleFunc("POST /api/products/{id}/reviews", h.requireAuth(h.addReview))

	// Cart.
	mux.HandleFunc("GET /api/cart", h.requireAuth(h.getCart))
	mux.HandleFunc("POST /api/cart", h.requireAuth(h.addToCart))
	mux.HandleFunc("PUT /api/cart/{productId}", h.requireAuth(h.setCartQuantity))
	mux.HandleFunc("DELETE /api/cart", h.requireAuth(h.removeFromCart))

	// Coupons.
	mux.HandleFunc("GET /api/coupons", h.requireAdmin(h.listCoupons))
	mux.HandleFunc("POST /api/coupons", h.requireAdmin(h.createCoupon))
	mux.HandleFunc("POST /api/coupons/validate", h.requireAuth(h.validateCoupon))
	mux.HandleFunc("DELETE /api/coupons/{id}", h.requireAdmin(h.deleteCoupon))

	// Orders.
	mux.HandleFunc("POST /api/orders", h.requireAuth(h.placeOrder))
	mux.HandleFunc("GET /api/orders", h.requireAdmin(h.listOrders))
	mux.HandleFunc("GET /api/orders/myorders", h.requireAuth(h.myOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.requireAuth(h.getOrder))
	mux.HandleFunc("PUT /api/orders/{id}/pay", h.requireAuth(h.payOrder))
	mux.HandleFunc("PUT /api/orders/{id}/deliver", h.requireAdmin(h.deliverOrder))
	mux.HandleFunc("PUT /api/orders/{id}/status", h.requireAdmin(h.updateOrderStatus))

	// Checkout simulation.
	mux.HandleFunc("POST /api/payments/checkout-session", h.requireAuth(h.createCheckoutSession))
	mux.HandleFunc("POST /api/payments/checkout-success", h.requireAuth(h.checkoutSuccess))

	// Analytics.
	mux.HandleFunc("GET /api/analytics", h.requireAdmin(h.analyticsSummary))
}

// errorResponse is the envelope returned on every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors onto HTTP statuses. Unmapped errors
// become an opaque 500; the underlying cause is logged, never returned.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFoundErr     *order.ProductNotFoundError
		quantityErr     *order.InvalidQuantityError
		insufficientErr *order.InsufficientStockError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, checkout.ErrEmptyItems),
		errors.Is(err, product.ErrAlreadyReviewed),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.As(err, &quantityErr),
		errors.As(err, &insufficientErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, coupon.ErrCodeTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode reads a JSON request body into dst, rejecting unknown fields.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
