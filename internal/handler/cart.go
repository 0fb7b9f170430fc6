package handler

import (
	"net/http"

	"github.com/shopora/storefront/internal/domain/cart"
	"github.com/shopora/storefront/internal/domain/user"
)

type cartLineResponse struct {
	Product  productResponse `json:"product"`
	Quantity int             `json:"quantity"`
}

type cartResponse struct {
	Items []cartLineResponse `json:"items"`
	Total float64            `json:"total"`
}

// getCart returns the cart denormalized against the catalog, with the
// running total priced at current catalog prices.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	lines, err := h.CartView.Lines(r.Context(), u.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(lines))
}

func toCartResponse(lines []cart.Line) cartResponse {
	resp := cartResponse{Items: make([]cartLineResponse, len(lines))}
	for i, line := range lines {
		resp.Items[i] = cartLineResponse{
			Product:  toProductResponse(line.Product),
			Quantity: line.Quantity,
		}
		resp.Total += line.Product.Price.InexactFloat64() * float64(line.Quantity)
	}
	return resp
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
}

// addToCart appends the product to the cart, incrementing the quantity when
// the line already exists. The product must exist in the catalog.
func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	var req cartItemRequest
	if err := decode(r, &req); err != nil || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	if _, err := h.Products.GetByID(r.Context(), req.ProductID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	items, err := h.Carts.Add(r.Context(), u.ID, req.ProductID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// setCartQuantity overwrites a line's quantity; zero removes the line.
func (h *Handler) setCartQuantity(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	var req setQuantityRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must be non-negative")
		return
	}

	items, err := h.Carts.SetQuantity(r.Context(), u.ID, r.PathValue("productId"), req.Quantity)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type removeFromCartRequest struct {
	ProductID string `json:"productId"`
}

// removeFromCart removes one line when a productId is given, otherwise it
// empties the cart. An empty body clears everything.
func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	var req removeFromCartRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if req.ProductID == "" {
		if err := h.Carts.Clear(r.Context(), u.ID); err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, []cart.Item{})
		return
	}

	items, err := h.Carts.Remove(r.Context(), u.ID, req.ProductID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
