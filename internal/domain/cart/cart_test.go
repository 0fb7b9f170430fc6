package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopora/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockCartRepo struct {
	items map[string][]Item
}

func (m *mockCartRepo) Items(_ context.Context, userID string) ([]Item, error) {
	return m.items[userID], nil
}

func (m *mockCartRepo) Add(_ context.Context, userID, productID string) ([]Item, error) {
	items := m.items[userID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity++
			return items, nil
		}
	}
	m.items[userID] = append(items, Item{ProductID: productID, Quantity: 1})
	return m.items[userID], nil
}

func (m *mockCartRepo) SetQuantity(_ context.Context, userID, productID string, qty int) ([]Item, error) {
	items := m.items[userID]
	for i := range items {
		if items[i].ProductID != productID {
			continue
		}
		if qty == 0 {
			m.items[userID] = append(items[:i], items[i+1:]...)
		} else {
			items[i].Quantity = qty
		}
		return m.items[userID], nil
	}
	return nil, ErrItemNotFound
}

func (m *mockCartRepo) Remove(_ context.Context, userID, productID string) ([]Item, error) {
	items := m.items[userID]
	for i := range items {
		if items[i].ProductID == productID {
			m.items[userID] = append(items[:i], items[i+1:]...)
			break
		}
	}
	return m.items[userID], nil
}

func (m *mockCartRepo) Clear(_ context.Context, userID string) error {
	delete(m.items, userID)
	return nil
}

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) List(_ context.Context, _ product.ListFilter) (*product.ListPage, error) {
	return &product.ListPage{}, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) ListFeatured(_ context.Context, _ int) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) ListRecommended(_ context.Context, _ int) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) ListByCategory(_ context.Context, _ string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) Create(_ context.Context, _ *product.Product) error { return nil }

func (m *mockProductRepo) Update(_ context.Context, _ string, _ product.Update) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) Delete(_ context.Context, _ string) error { return nil }

func (m *mockProductRepo) SetFeatured(_ context.Context, _ string, _ bool) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) AddReview(_ context.Context, _ *product.Review) error { return nil }

func (m *mockProductRepo) Reviews(_ context.Context, _ string) ([]product.Review, error) {
	return nil, nil
}

// --- Tests ---

func TestLines_DenormalizesAgainstCatalog(t *testing.T) {
	carts := &mockCartRepo{items: map[string][]Item{
		"u1": {
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
	}}
	products := &mockProductRepo{byID: map[string]product.Product{
		"p1": {ID: "p1", Name: "Widget", Price: decimal.NewFromInt(10)},
		"p2": {ID: "p2", Name: "Gadget", Price: decimal.NewFromInt(20)},
	}}
	svc := NewService(carts, products)

	lines, err := svc.Lines(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, "Widget", lines[0].Product.Name)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Gadget", lines[1].Product.Name)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestLines_DropsVanishedProducts(t *testing.T) {
	carts := &mockCartRepo{items: map[string][]Item{
		"u1": {
			{ProductID: "p1", Quantity: 1},
			{ProductID: "deleted", Quantity: 3},
		},
	}}
	products := &mockProductRepo{byID: map[string]product.Product{
		"p1": {ID: "p1", Name: "Widget"},
	}}
	svc := NewService(carts, products)

	lines, err := svc.Lines(context.Background(), "u1")
	require.NoError(t, err)

	require.Len(t, lines, 1)
	assert.Equal(t, "p1", lines[0].Product.ID)
}

func TestLines_EmptyCart(t *testing.T) {
	svc := NewService(&mockCartRepo{items: map[string][]Item{}}, &mockProductRepo{})

	lines, err := svc.Lines(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.NotNil(t, lines)
}
