package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/shopora/storefront/internal/domain/product"
)

// ErrItemNotFound is returned when mutating a cart line that does not exist.
var ErrItemNotFound = errors.New("product not found in cart")

// Item is a single cart line: one row per product per user, quantity >= 1.
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Line is a cart item resolved against the catalog.
type Line struct {
	Product  product.Product
	Quantity int
}

// Repository defines cart persistence. Add upserts: a repeated add
// increments the existing line's quantity by one. SetQuantity with qty 0
// removes the line. Mutations return the resulting cart.
type Repository interface {
	Items(ctx context.Context, userID string) ([]Item, error)
	Add(ctx context.Context, userID, productID string) ([]Item, error)
	SetQuantity(ctx context.Context, userID, productID string, qty int) ([]Item, error)
	Remove(ctx context.Context, userID, productID string) ([]Item, error)
	Clear(ctx context.Context, userID string) error
}

// Service resolves cart lines against the catalog. Stock is intentionally
// not checked at cart time; it becomes authoritative at order assembly.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Lines returns the user's cart denormalized with product data. Lines whose
// product has disappeared from the catalog are dropped from the result.
func (s *Service) Lines(ctx context.Context, userID string) ([]Line, error) {
	items, err := s.carts.Items(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(items) == 0 {
		return []Line{}, nil
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve cart products")
	}

	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		p, ok := byID[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, Line{Product: p, Quantity: item.Quantity})
	}
	return lines, nil
}
