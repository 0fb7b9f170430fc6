package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopora/storefront/internal/domain/product"
	"github.com/shopora/storefront/internal/domain/user"
	"github.com/shopora/storefront/internal/storage/rediscache"
)

const (
	featuredLimit    = 8
	recommendedLimit = 4
)

type ratingResponse struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type productResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	Images      []string       `json:"images"`
	Category    string         `json:"category"`
	Brand       string         `json:"brand,omitempty"`
	Stock       int            `json:"stock"`
	IsActive    bool           `json:"isActive"`
	IsFeatured  bool           `json:"isFeatured"`
	Rating      ratingResponse `json:"rating"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func toProductResponse(p product.Product) productResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Images:      images,
		Category:    p.Category,
		Brand:       p.Brand,
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		IsFeatured:  p.IsFeatured,
		Rating: ratingResponse{
			Average: p.Rating.Average.InexactFloat64(),
			Count:   p.Rating.Count,
		},
		CreatedAt: p.CreatedAt,
	}
}

func toProductResponses(products []product.Product) []productResponse {
	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	return out
}

type productListResponse struct {
	Products    []productResponse `json:"products"`
	Total       int               `json:"total"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := product.ListFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Featured: q.Get("featured") == "true",
		SortBy:   q.Get("sortBy"),
		SortDesc: q.Get("order") == "desc",
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	if raw := q.Get("minPrice"); raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil {
			f.MinPrice = &d
		}
	}
	if raw := q.Get("maxPrice"); raw != "" {
		if d, err := decimal.NewFromString(raw); err == nil {
			f.MaxPrice = &d
		}
	}

	page, err := h.Products.List(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productListResponse{
		Products:    toProductResponses(page.Products),
		Total:       page.Total,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

// featuredProducts serves the featured list read-through from the cache. A
// cache failure degrades to the database, never to an error.
func (h *Handler) featuredProducts(w http.ResponseWriter, r *http.Request) {
	cached, err := h.Cache.FeaturedProducts(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, toProductResponses(cached))
		return
	}
	if !errors.Is(err, rediscache.ErrCacheMiss) {
		zctx.From(r.Context()).Warn("featured products cache read failed", zap.Error(err))
	}

	products, err := h.Products.ListFeatured(r.Context(), featuredLimit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if err := h.Cache.SetFeaturedProducts(r.Context(), products); err != nil {
		zctx.From(r.Context()).Warn("featured products cache write failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *Handler) recommendedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.ListRecommended(r.Context(), recommendedLimit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

func (h *Handler) productsByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.ListByCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponses(products))
}

type createProductRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Images      []string `json:"images"`
	Category    string   `json:"category"`
	Brand       string   `json:"brand"`
	Stock       int      `json:"stock"`
	IsFeatured  bool     `json:"isFeatured"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Category == "" {
		writeError(w, http.StatusBadRequest, "name and category are required")
		return
	}
	if req.Price < 0 || req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "price and stock must be non-negative")
		return
	}

	p := &product.Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Price:       decimal.NewFromFloat(req.Price),
		Images:      req.Images,
		Category:    req.Category,
		Brand:       req.Brand,
		Stock:       req.Stock,
		IsActive:    true,
		IsFeatured:  req.IsFeatured,
	}
	if err := h.Products.Create(r.Context(), p); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.invalidateFeatured(r)
	writeJSON(w, http.StatusCreated, toProductResponse(*p))
}

type updateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Images      []string `json:"images"`
	Category    *string  `json:"category"`
	Brand       *string  `json:"brand"`
	Stock       *int     `json:"stock"`
	IsActive    *bool    `json:"isActive"`
	IsFeatured  *bool    `json:"isFeatured"`
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := product.Update{
		Name:        req.Name,
		Description: req.Description,
		Images:      req.Images,
		Category:    req.Category,
		Brand:       req.Brand,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
		IsFeatured:  req.IsFeatured,
	}
	if req.Price != nil {
		if *req.Price < 0 {
			writeError(w, http.StatusBadRequest, "price must be non-negative")
			return
		}
		price := decimal.NewFromFloat(*req.Price)
		upd.Price = &price
	}

	p, err := h.Products.Update(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.invalidateFeatured(r)
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Products.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.invalidateFeatured(r)
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

// toggleFeatured flips the product's featured flag to the opposite of its
// current value.
func (h *Handler) toggleFeatured(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := h.Products.GetByID(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	p, err = h.Products.SetFeatured(r.Context(), id, !p.IsFeatured)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.invalidateFeatured(r)
	writeJSON(w, http.StatusOK, toProductResponse(*p))
}

// invalidateFeatured drops the cached featured list after any catalog write.
// Best-effort; the entry also expires on its own TTL.
func (h *Handler) invalidateFeatured(r *http.Request) {
	if err := h.Cache.InvalidateFeatured(r.Context()); err != nil {
		zctx.From(r.Context()).Warn("featured products cache invalidation failed", zap.Error(err))
	}
}

type reviewResponse struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Products.Reviews(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	out := make([]reviewResponse, len(reviews))
	for i, rev := range reviews {
		out[i] = reviewResponse{
			UserID:    rev.UserID,
			UserName:  rev.UserName,
			Rating:    rev.Rating,
			Comment:   rev.Comment,
			CreatedAt: rev.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type addReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) addReview(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	var req addReviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	rev := &product.Review{
		ProductID: r.PathValue("id"),
		UserID:    u.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := h.Products.AddReview(r.Context(), rev); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reviewResponse{
		UserID:    rev.UserID,
		UserName:  u.Name,
		Rating:    rev.Rating,
		Comment:   rev.Comment,
		CreatedAt: rev.CreatedAt,
	})
}
