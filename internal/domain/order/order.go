package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopora/storefront/internal/domain/user"
)

// Order lifecycle statuses. Status moves forward only; free-form values are
// accepted on admin updates, but "delivered" additionally flips the
// delivery flags.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Item is an immutable line-item snapshot captured at order time. Name and
// price come from the catalog, not the client.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// ShippingAddress is the destination snapshot stored on the order.
type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// PaymentResult records the payment-provider confirmation on mark-paid.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// Order is the persisted order snapshot. Fields only move forward: payment
// and delivery flags are set once, status transitions never clear them.
type Order struct {
	ID              string
	UserID          string
	Items           []Item
	ShippingAddress ShippingAddress
	PaymentMethod   string
	ItemsPrice      decimal.Decimal
	TaxPrice        decimal.Decimal
	ShippingPrice   decimal.Decimal
	TotalPrice      decimal.Decimal
	IsPaid          bool
	PaidAt          *time.Time
	PaymentResult   *PaymentResult
	IsDelivered     bool
	DeliveredAt     *time.Time
	Status          string
	TrackingNumber  string
	CreatedAt       time.Time
}

// Page is one page of orders plus the pagination envelope the API returns.
type Page struct {
	Orders      []Order
	TotalPages  int
	CurrentPage int
	Total       int
}

// ListFilter narrows an admin order listing.
type ListFilter struct {
	Status string
	Page   int
	Limit  int
}

// Repository defines order persistence. Create must persist the order AND
// decrement stock for every item inside a single transaction, using an
// atomic conditional decrement per product (stock = stock - qty WHERE
// stock >= qty). A decrement that matches no row aborts the whole
// transaction with InsufficientStockError, so concurrent orders can never
// overdraw stock or leave a partially-applied order behind.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, page, limit int) (*Page, error)
	List(ctx context.Context, f ListFilter) (*Page, error)
	MarkPaid(ctx context.Context, id string, res PaymentResult) (*Order, error)
	UpdateStatus(ctx context.Context, id, status, trackingNumber string) (*Order, error)
}

// Sentinel errors for order operations.
var (
	ErrEmptyItems = fmt.Errorf("no order items")
	ErrNotFound   = fmt.Errorf("order not found")
	ErrForbidden  = fmt.Errorf("not authorized to view this order")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a product cannot cover the requested
// quantity. Available is a snapshot and may be stale under concurrency; the
// storage layer's conditional decrement is the authoritative guard.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s. Available: %d, Requested: %d",
		e.Name, e.Available, e.Requested)
}

// CanView reports whether the given user may read this order.
func (o *Order) CanView(u *user.User) bool {
	return u.IsAdmin() || o.UserID == u.ID
}

// TotalPagesFor returns the number of pages needed for total rows at the
// given page size.
func TotalPagesFor(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
