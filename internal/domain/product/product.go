package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrAlreadyReviewed is returned when a user reviews the same product twice.
	ErrAlreadyReviewed = errors.New("product already reviewed")
)

// Rating is the denormalized review aggregate kept on the product row.
type Rating struct {
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

// Product is a catalog item. Stock is authoritative only at order assembly;
// cart mutations never consult it.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Images      []string
	Category    string
	Brand       string
	Stock       int
	IsActive    bool
	IsFeatured  bool
	Rating      Rating
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Review is a single user review of a product. One review per user per
// product; submission recomputes the product's rating aggregate.
type Review struct {
	ProductID string
	UserID    string
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// ListFilter narrows and orders a catalog listing. Zero values are ignored.
type ListFilter struct {
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Search   string
	Featured bool
	SortBy   string // name, price, created_at, rating; default created_at
	SortDesc bool
	Page     int
	Limit    int
}

// ListPage is one page of catalog results.
type ListPage struct {
	Products    []Product
	Total       int
	TotalPages  int
	CurrentPage int
}

// Update holds mutable product fields for an admin update. Nil fields are
// left unchanged.
type Update struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Images      []string
	Category    *string
	Brand       *string
	Stock       *int
	IsActive    *bool
	IsFeatured  *bool
}

// Repository defines catalog persistence. Stock decrements are not exposed
// here: they happen inside the order repository's transaction as atomic
// conditional updates, so no caller can fall back to read-modify-write.
type Repository interface {
	List(ctx context.Context, f ListFilter) (*ListPage, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	ListFeatured(ctx context.Context, limit int) ([]Product, error)
	ListRecommended(ctx context.Context, limit int) ([]Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, upd Update) (*Product, error)
	Delete(ctx context.Context, id string) error
	SetFeatured(ctx context.Context, id string, featured bool) (*Product, error)
	AddReview(ctx context.Context, r *Review) error
	Reviews(ctx context.Context, productID string) ([]Review, error)
}
