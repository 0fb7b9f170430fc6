package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopora/storefront/internal/domain/order"
	"github.com/shopora/storefront/internal/domain/user"
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	OrderItems      []orderItemRequest    `json:"orderItems"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	ItemsPrice      float64               `json:"itemsPrice"`
	TaxPrice        float64               `json:"taxPrice"`
	ShippingPrice   float64               `json:"shippingPrice"`
	TotalPrice      float64               `json:"totalPrice"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

type orderResponse struct {
	ID              string                `json:"id"`
	UserID          string                `json:"userId"`
	Items           []orderItemResponse   `json:"orderItems"`
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	ItemsPrice      float64               `json:"itemsPrice"`
	TaxPrice        float64               `json:"taxPrice"`
	ShippingPrice   float64               `json:"shippingPrice"`
	TotalPrice      float64               `json:"totalPrice"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	PaymentResult   *order.PaymentResult  `json:"paymentResult,omitempty"`
	IsDelivered     bool                  `json:"isDelivered"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	Status          string                `json:"status"`
	TrackingNumber  string                `json:"trackingNumber,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price.InexactFloat64(),
			Quantity:  item.Quantity,
		}
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		ItemsPrice:      o.ItemsPrice.InexactFloat64(),
		TaxPrice:        o.TaxPrice.InexactFloat64(),
		ShippingPrice:   o.ShippingPrice.InexactFloat64(),
		TotalPrice:      o.TotalPrice.InexactFloat64(),
		IsPaid:          o.IsPaid,
		PaidAt:          o.PaidAt,
		PaymentResult:   o.PaymentResult,
		IsDelivered:     o.IsDelivered,
		DeliveredAt:     o.DeliveredAt,
		Status:          o.Status,
		TrackingNumber:  o.TrackingNumber,
		CreatedAt:       o.CreatedAt,
	}
}

type orderPageResponse struct {
	Orders      []orderResponse `json:"orders"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Total       int             `json:"total"`
}

func toOrderPageResponse(page *order.Page) orderPageResponse {
	orders := make([]orderResponse, len(page.Orders))
	for i := range page.Orders {
		orders[i] = toOrderResponse(&page.Orders[i])
	}
	return orderPageResponse{
		Orders:      orders,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		Total:       page.Total,
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	var req placeOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.Item, len(req.OrderItems))
	for i, item := range req.OrderItems {
		items[i] = order.Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	o, err := h.Orders.Place(r.Context(), order.PlaceRequest{
		UserID:          u.ID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      decimal.NewFromFloat(req.ItemsPrice),
		TaxPrice:        decimal.NewFromFloat(req.TaxPrice),
		ShippingPrice:   decimal.NewFromFloat(req.ShippingPrice),
		TotalPrice:      decimal.NewFromFloat(req.TotalPrice),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	o, err := h.Orders.Get(r.Context(), u, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) myOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())

	page, limit := pageParams(r)
	result, err := h.Orders.ListMine(r.Context(), u.ID, page, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderPageResponse(result))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	result, err := h.Orders.ListAll(r.Context(), order.ListFilter{
		Status: r.URL.Query().Get("status"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderPageResponse(result))
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := user.FromContext(r.Context())
	id := r.PathValue("id")

	// Only the owner (or an admin) may mark an order paid.
	if _, err := h.Orders.Get(r.Context(), u, id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var res order.PaymentResult
	if err := decode(r, &res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.Orders.MarkPaid(r.Context(), id, res)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.MarkDelivered(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	o, err := h.Orders.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.TrackingNumber)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func pageParams(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	page, _ = strconv.Atoi(q.Get("page"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return page, limit
}
