package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shopora/storefront/internal/auth"
	"github.com/shopora/storefront/internal/domain/analytics"
	"github.com/shopora/storefront/internal/domain/cart"
	"github.com/shopora/storefront/internal/domain/checkout"
	"github.com/shopora/storefront/internal/domain/coupon"
	"github.com/shopora/storefront/internal/domain/order"
	"github.com/shopora/storefront/internal/domain/product"
	"github.com/shopora/storefront/internal/domain/user"
	"github.com/shopora/storefront/internal/storage/rediscache"
)

// --- In-memory fakes ---

type fakeCache struct {
	mu            sync.Mutex
	featured      []product.Product
	refresh       map[string]string
	invalidations int
}

func newFakeCache() *fakeCache {
	return &fakeCache{refresh: make(map[string]string)}
}

func (c *fakeCache) FeaturedProducts(context.Context) ([]product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.featured == nil {
		return nil, rediscache.ErrCacheMiss
	}
	return c.featured, nil
}

func (c *fakeCache) SetFeaturedProducts(_ context.Context, products []product.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.featured = products
	return nil
}

func (c *fakeCache) InvalidateFeatured(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.featured = nil
	c.invalidations++
	return nil
}

func (c *fakeCache) StoreRefreshToken(_ context.Context, userID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh[userID] = token
	return nil
}

func (c *fakeCache) RefreshToken(_ context.Context, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.refresh[userID]
	if !ok {
		return "", rediscache.ErrCacheMiss
	}
	return token, nil
}

func (c *fakeCache) DeleteRefreshToken(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.refresh, userID)
	return nil
}

type fakeUserRepo struct {
	byID map[string]*user.User
}

func (f *fakeUserRepo) Create(_ context.Context, u *user.User) error {
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	u.CreatedAt = time.Now()
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id string, upd user.ProfileUpdate) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Address != nil {
		u.Address = *upd.Address
	}
	if upd.PhoneNumber != nil {
		u.PhoneNumber = *upd.PhoneNumber
	}
	return u, nil
}

type fakeProductRepo struct {
	order   []string
	byID    map[string]*product.Product
	reviews map[string][]product.Review
}

func newFakeProductRepo(products ...*product.Product) *fakeProductRepo {
	f := &fakeProductRepo{
		byID:    make(map[string]*product.Product),
		reviews: make(map[string][]product.Review),
	}
	for _, p := range products {
		f.order = append(f.order, p.ID)
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProductRepo) all() []product.Product {
	out := make([]product.Product, 0, len(f.order))
	for _, id := range f.order {
		if p, ok := f.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (f *fakeProductRepo) List(_ context.Context, _ product.ListFilter) (*product.ListPage, error) {
	products := f.all()
	return &product.ListPage{
		Products:    products,
		Total:       len(products),
		TotalPages:  1,
		CurrentPage: 1,
	}, nil
}

func (f *fakeProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) ListFeatured(_ context.Context, limit int) ([]product.Product, error) {
	var out []product.Product
	for _, p := range f.all() {
		if p.IsFeatured && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) ListRecommended(_ context.Context, limit int) ([]product.Product, error) {
	products := f.all()
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (f *fakeProductRepo) ListByCategory(_ context.Context, category string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range f.all() {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) Create(_ context.Context, p *product.Product) error {
	f.order = append(f.order, p.ID)
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProductRepo) Update(_ context.Context, id string, upd product.Update) (*product.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Stock != nil {
		p.Stock = *upd.Stock
	}
	if upd.IsActive != nil {
		p.IsActive = *upd.IsActive
	}
	if upd.IsFeatured != nil {
		p.IsFeatured = *upd.IsFeatured
	}
	return p, nil
}

func (f *fakeProductRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return product.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeProductRepo) SetFeatured(_ context.Context, id string, featured bool) (*product.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.IsFeatured = featured
	return p, nil
}

func (f *fakeProductRepo) AddReview(_ context.Context, r *product.Review) error {
	if _, ok := f.byID[r.ProductID]; !ok {
		return product.ErrNotFound
	}
	for _, existing := range f.reviews[r.ProductID] {
		if existing.UserID == r.UserID {
			return product.ErrAlreadyReviewed
		}
	}
	r.CreatedAt = time.Now()
	f.reviews[r.ProductID] = append(f.reviews[r.ProductID], *r)
	return nil
}

func (f *fakeProductRepo) Reviews(_ context.Context, productID string) ([]product.Review, error) {
	return f.reviews[productID], nil
}

type fakeCartRepo struct {
	items map[string][]cart.Item
}

func (f *fakeCartRepo) Items(_ context.Context, userID string) ([]cart.Item, error) {
	return f.items[userID], nil
}

func (f *fakeCartRepo) Add(_ context.Context, userID, productID string) ([]cart.Item, error) {
	items := f.items[userID]
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity++
			return items, nil
		}
	}
	f.items[userID] = append(items, cart.Item{ProductID: productID, Quantity: 1})
	return f.items[userID], nil
}

func (f *fakeCartRepo) SetQuantity(_ context.Context, userID, productID string, qty int) ([]cart.Item, error) {
	items := f.items[userID]
	for i := range items {
		if items[i].ProductID != productID {
			continue
		}
		if qty == 0 {
			f.items[userID] = append(items[:i], items[i+1:]...)
		} else {
			items[i].Quantity = qty
		}
		return f.items[userID], nil
	}
	return nil, cart.ErrItemNotFound
}

func (f *fakeCartRepo) Remove(_ context.Context, userID, productID string) ([]cart.Item, error) {
	items := f.items[userID]
	for i := range items {
		if items[i].ProductID == productID {
			f.items[userID] = append(items[:i], items[i+1:]...)
			break
		}
	}
	return f.items[userID], nil
}

func (f *fakeCartRepo) Clear(_ context.Context, userID string) error {
	delete(f.items, userID)
	return nil
}

type fakeCouponRepo struct {
	byCode map[string]*coupon.Coupon
}

func (f *fakeCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	if _, ok := f.byCode[c.Code]; ok {
		return coupon.ErrCodeTaken
	}
	f.byCode[c.Code] = c
	return nil
}

func (f *fakeCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := f.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (f *fakeCouponRepo) ListActive(_ context.Context) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	for _, c := range f.byCode {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCouponRepo) ListCodes(_ context.Context) ([]string, error) {
	codes := make([]string, 0, len(f.byCode))
	for code := range f.byCode {
		codes = append(codes, code)
	}
	return codes, nil
}

func (f *fakeCouponRepo) Delete(_ context.Context, id string) error {
	for code, c := range f.byCode {
		if c.ID == id {
			delete(f.byCode, code)
			return nil
		}
	}
	return coupon.ErrNotFound
}

func (f *fakeCouponRepo) Redeem(_ context.Context, code string) error {
	c, ok := f.byCode[code]
	if !ok {
		return coupon.ErrNotFound
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return coupon.ErrUsageLimitReached
	}
	c.UsedCount++
	return nil
}

type fakeOrderRepo struct {
	byID map[string]*order.Order
}

func (f *fakeOrderRepo) Create(_ context.Context, o *order.Order) error {
	o.CreatedAt = time.Now()
	f.byID[o.ID] = o
	return nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) ListByUser(_ context.Context, userID string, page, limit int) (*order.Page, error) {
	var mine []order.Order
	for _, o := range f.byID {
		if o.UserID == userID {
			mine = append(mine, *o)
		}
	}
	return &order.Page{
		Orders:      mine,
		Total:       len(mine),
		TotalPages:  order.TotalPagesFor(len(mine), limit),
		CurrentPage: page,
	}, nil
}

func (f *fakeOrderRepo) List(_ context.Context, fl order.ListFilter) (*order.Page, error) {
	var out []order.Order
	for _, o := range f.byID {
		if fl.Status == "" || o.Status == fl.Status {
			out = append(out, *o)
		}
	}
	return &order.Page{
		Orders:      out,
		Total:       len(out),
		TotalPages:  order.TotalPagesFor(len(out), fl.Limit),
		CurrentPage: fl.Page,
	}, nil
}

func (f *fakeOrderRepo) MarkPaid(_ context.Context, id string, res order.PaymentResult) (*order.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	now := time.Now()
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentResult = &res
	return o, nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, id, status, trackingNumber string) (*order.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Status = status
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	if status == order.StatusDelivered {
		now := time.Now()
		o.IsDelivered = true
		o.DeliveredAt = &now
	}
	return o, nil
}

type fakeAnalyticsRepo struct {
	users, products, orders int64
	revenue, avg            decimal.Decimal
	daily                   []analytics.DailyStat
}

func (f *fakeAnalyticsRepo) CountUsers(context.Context) (int64, error)    { return f.users, nil }
func (f *fakeAnalyticsRepo) CountProducts(context.Context) (int64, error) { return f.products, nil }
func (f *fakeAnalyticsRepo) CountOrders(context.Context) (int64, error)   { return f.orders, nil }

func (f *fakeAnalyticsRepo) RevenueStats(context.Context) (decimal.Decimal, decimal.Decimal, error) {
	return f.revenue, f.avg, nil
}

func (f *fakeAnalyticsRepo) DailyOrders(_ context.Context, _, _ time.Time) ([]analytics.DailyStat, error) {
	return f.daily, nil
}

// --- Test environment ---

const testPassword = "hunter22"

type env struct {
	mux *http.ServeMux

	users     *fakeUserRepo
	products  *fakeProductRepo
	carts     *fakeCartRepo
	coupons   *fakeCouponRepo
	orders    *fakeOrderRepo
	analytics *fakeAnalyticsRepo
	cache     *fakeCache
	tokens    *auth.TokenManager

	customer *user.User
	admin    *user.User
}

func newEnv(t *testing.T) *env {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)

	customer := &user.User{
		ID:           "u-customer",
		Name:         "Casey Customer",
		Email:        "casey@example.com",
		PasswordHash: hash,
		Role:         user.RoleCustomer,
		CreatedAt:    time.Now(),
	}
	admin := &user.User{
		ID:           "u-admin",
		Name:         "Alex Admin",
		Email:        "alex@example.com",
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		CreatedAt:    time.Now(),
	}

	e := &env{
		users: &fakeUserRepo{byID: map[string]*user.User{
			customer.ID: customer,
			admin.ID:    admin,
		}},
		products:  newFakeProductRepo(),
		carts:     &fakeCartRepo{items: make(map[string][]cart.Item)},
		coupons:   &fakeCouponRepo{byCode: make(map[string]*coupon.Coupon)},
		orders:    &fakeOrderRepo{byID: make(map[string]*order.Order)},
		analytics: &fakeAnalyticsRepo{},
		cache:     newFakeCache(),
		tokens:    auth.NewTokenManager("test-secret", time.Hour),
		customer:  customer,
		admin:     admin,
	}

	validator := coupon.NewValidator(e.coupons)
	h := New(Config{}, Deps{
		Users:     e.users,
		Tokens:    e.tokens,
		Cache:     e.cache,
		Products:  e.products,
		Carts:     e.carts,
		CartView:  cart.NewService(e.carts, e.products),
		Coupons:   e.coupons,
		Validator: validator,
		Orders:    order.NewService(e.products, e.orders),
		Checkout:  checkout.NewService(validator, e.coupons, e.carts, checkout.DefaultConfig()),
		Analytics: analytics.NewService(e.analytics),
	})

	e.mux = http.NewServeMux()
	h.Register(e.mux)
	return e
}

func (e *env) tokenFor(t *testing.T, u *user.User) string {
	t.Helper()
	token, err := e.tokens.Issue(u.ID)
	require.NoError(t, err)
	return token
}

// do serves a request through the full mux. A non-empty token is sent as a
// Bearer header; a non-nil body is JSON-encoded.
func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func testProduct(id, name string, price int64, stock int) *product.Product {
	return &product.Product{
		ID:        id,
		Name:      name,
		Price:     decimal.NewFromInt(price),
		Category:  "electronics",
		Stock:     stock,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}
