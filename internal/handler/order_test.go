package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopora/storefront/internal/domain/order"
)

func seedOrder(e *env, id, userID string) *order.Order {
	o := &order.Order{
		ID:     id,
		UserID: userID,
		Items: []order.Item{
			{ProductID: "p1", Name: "Keyboard", Price: decimal.NewFromInt(89), Quantity: 1},
		},
		TotalPrice: decimal.NewFromInt(89),
		Status:     order.StatusPending,
	}
	e.orders.byID[id] = o
	return o
}

func TestPlaceOrder(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.products.Create(context.Background(), testProduct("p1", "Keyboard", 89, 10)))

	rec := e.do(t, http.MethodPost, "/api/orders", e.tokenFor(t, e.customer), map[string]any{
		"orderItems": []map[string]any{
			{"productId": "p1", "quantity": 2},
		},
		"shippingAddress": map[string]string{
			"street": "1 Main St", "city": "Springfield", "zipCode": "12345", "country": "US",
		},
		"paymentMethod": "card",
		"itemsPrice":    178.0,
		"taxPrice":      14.24,
		"shippingPrice": 5.0,
		"totalPrice":    197.24,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeBody[orderResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, e.customer.ID, resp.UserID)
	assert.Equal(t, order.StatusPending, resp.Status)
	require.Len(t, resp.Items, 1)
	// Name and price are catalog snapshots, not client input.
	assert.Equal(t, "Keyboard", resp.Items[0].Name)
	assert.Equal(t, float64(89), resp.Items[0].Price)
	assert.InDelta(t, 197.24, resp.TotalPrice, 0.001)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.products.Create(context.Background(), testProduct("p1", "Keyboard", 89, 2)))
	token := e.tokenFor(t, e.customer)

	tests := []struct {
		name  string
		items []map[string]any
		want  int
	}{
		{"no items", nil, http.StatusBadRequest},
		{"zero quantity", []map[string]any{{"productId": "p1", "quantity": 0}}, http.StatusBadRequest},
		{"unknown product", []map[string]any{{"productId": "ghost", "quantity": 1}}, http.StatusNotFound},
		{"insufficient stock", []map[string]any{{"productId": "p1", "quantity": 3}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/orders", token, map[string]any{
				"orderItems": tt.items,
			})
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetOrder_Authorization(t *testing.T) {
	e := newEnv(t)
	seedOrder(e, "o1", e.customer.ID)

	// Owner and admin can read it.
	rec := e.do(t, http.MethodGet, "/api/orders/o1", e.tokenFor(t, e.customer), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/orders/o1", e.tokenFor(t, e.admin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A different customer cannot.
	stranger := *e.customer
	stranger.ID = "u-stranger"
	e.users.byID[stranger.ID] = &stranger
	rec = e.do(t, http.MethodGet, "/api/orders/o1", e.tokenFor(t, &stranger), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/orders/ghost", e.tokenFor(t, e.customer), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMyOrders(t *testing.T) {
	e := newEnv(t)
	seedOrder(e, "o1", e.customer.ID)
	seedOrder(e, "o2", "someone-else")

	rec := e.do(t, http.MethodGet, "/api/orders/myorders", e.tokenFor(t, e.customer), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[orderPageResponse](t, rec)
	require.Len(t, resp.Orders, 1)
	assert.Equal(t, "o1", resp.Orders[0].ID)
	assert.Equal(t, 1, resp.Total)
}

func TestListOrders_AdminOnly(t *testing.T) {
	e := newEnv(t)
	seedOrder(e, "o1", e.customer.ID)
	seedOrder(e, "o2", "someone-else")

	rec := e.do(t, http.MethodGet, "/api/orders", e.tokenFor(t, e.customer), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/orders", e.tokenFor(t, e.admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[orderPageResponse](t, rec).Total)
}

func TestPayOrder(t *testing.T) {
	e := newEnv(t)
	seedOrder(e, "o1", e.customer.ID)

	rec := e.do(t, http.MethodPut, "/api/orders/o1/pay", e.tokenFor(t, e.customer), map[string]string{
		"id":            "pay_123",
		"status":        "COMPLETED",
		"update_time":   "2026-08-28T12:00:00Z",
		"email_address": "casey@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[orderResponse](t, rec)
	assert.True(t, resp.IsPaid)
	require.NotNil(t, resp.PaidAt)
	require.NotNil(t, resp.PaymentResult)
	assert.Equal(t, "pay_123", resp.PaymentResult.ID)
}

func TestPayOrder_StrangerForbidden(t *testing.T) {
	e := newEnv(t)
	seedOrder(e, "o1", e.customer.ID)
	stranger := *e.customer
	stranger.ID = "u-stranger"
	e.users.byID[stranger.ID] = &stranger

	rec := e.do(t, http.MethodPut, "/api/orders/o1/pay", e.tokenFor(t, &stranger), map[string]string{
		"id": "pay_123",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, e.orders.byID["o1"].IsPaid)
}

func TestDeliverOrder(t *testing.T) {
	e := newEnv(t)
	seedOrder(e, "o1", e.customer.ID)

	rec := e.do(t, http.MethodPut, "/api/orders/o1/deliver", e.tokenFor(t, e.admin), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[orderResponse](t, rec)
	assert.True(t, resp.IsDelivered)
	assert.Equal(t, order.StatusDelivered, resp.Status)
	assert.NotNil(t, resp.DeliveredAt)
}

func TestUpdateOrderStatus(t *testing.T) {
	e := newEnv(t)
	seedOrder(e, "o1", e.customer.ID)
	token := e.tokenFor(t, e.admin)

	rec := e.do(t, http.MethodPut, "/api/orders/o1/status", token, map[string]string{
		"status":         order.StatusShipped,
		"trackingNumber": "TRK-42",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[orderResponse](t, rec)
	assert.Equal(t, order.StatusShipped, resp.Status)
	assert.Equal(t, "TRK-42", resp.TrackingNumber)

	rec = e.do(t, http.MethodPut, "/api/orders/o1/status", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
