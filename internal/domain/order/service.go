package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopora/storefront/internal/domain/product"
	"github.com/shopora/storefront/internal/domain/user"
)

// Pagination defaults for order listings.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// PlaceRequest holds the input for assembling an order.
type PlaceRequest struct {
	UserID          string
	Items           []Item
	ShippingAddress ShippingAddress
	PaymentMethod   string
	ItemsPrice      decimal.Decimal
	TaxPrice        decimal.Decimal
	ShippingPrice   decimal.Decimal
	TotalPrice      decimal.Decimal
}

// Service assembles, reads, and advances orders.
type Service struct {
	products product.Repository
	orders   Repository
}

// NewService creates an order Service with the required dependencies.
func NewService(products product.Repository, orders Repository) *Service {
	return &Service{products: products, orders: orders}
}

// Place validates every requested item against the catalog, snapshots the
// line items, and persists the order. All items are validated before
// anything is written; persistence decrements stock atomically per product
// inside the same transaction, so either the order and every decrement land
// together or nothing does.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Validate every line before any write. The stock comparison here is a
	// snapshot; the conditional decrement at persist time is what actually
	// holds under concurrent orders.
	items := make([]Item, len(req.Items))
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if p.Stock < item.Quantity {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Available: p.Stock,
				Requested: item.Quantity,
			}
		}
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  item.Quantity,
		}
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      req.ItemsPrice.Round(2),
		TaxPrice:        req.TaxPrice.Round(2),
		ShippingPrice:   req.ShippingPrice.Round(2),
		TotalPrice:      req.TotalPrice.Round(2),
		Status:          StatusPending,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		var insufficientErr *InsufficientStockError
		if errors.As(err, &insufficientErr) {
			// Lost the race between validation and decrement.
			zctx.From(ctx).Warn("stock decrement rejected at persist",
				zap.String("order_id", o.ID),
				zap.String("product_id", insufficientErr.ProductID),
				zap.Int("requested", insufficientErr.Requested),
			)
			return nil, insufficientErr
		}
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// Get returns the order if the requester owns it or is an admin.
func (s *Service) Get(ctx context.Context, requester *user.User, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.CanView(requester) {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListMine returns a page of the requester's own orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID string, page, limit int) (*Page, error) {
	page, limit = normalizePage(page, limit)
	return s.orders.ListByUser(ctx, userID, page, limit)
}

// ListAll returns a page of all orders, optionally filtered by status.
// Authorization is enforced at the route level (admin only).
func (s *Service) ListAll(ctx context.Context, f ListFilter) (*Page, error) {
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)
	if f.Status == "all" {
		f.Status = ""
	}
	return s.orders.List(ctx, f)
}

// MarkPaid records the payment confirmation on the order. Re-marking an
// already paid order overwrites the payment result but keeps the original
// flags semantics (isPaid stays true).
func (s *Service) MarkPaid(ctx context.Context, id string, res PaymentResult) (*Order, error) {
	return s.orders.MarkPaid(ctx, id, res)
}

// MarkDelivered sets the order's status to delivered.
func (s *Service) MarkDelivered(ctx context.Context, id string) (*Order, error) {
	return s.orders.UpdateStatus(ctx, id, StatusDelivered, "")
}

// UpdateStatus sets the order's status and, when provided, its tracking
// number. A "delivered" status also flips the delivery flags.
func (s *Service) UpdateStatus(ctx context.Context, id, status, trackingNumber string) (*Order, error) {
	return s.orders.UpdateStatus(ctx, id, status, trackingNumber)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return page, limit
}
