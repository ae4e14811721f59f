package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/omnisoho/fitshop/internal/shop"
)

type fakeCatalog struct {
	products []shop.Product
	err      error
}

func (f *fakeCatalog) List(_ context.Context, _ *shop.Category, _ string, _, _ int) ([]shop.Product, int, error) {
	return f.products, len(f.products), f.err
}

func (f *fakeCatalog) BySlug(_ context.Context, slug string) (shop.Product, error) {
	if f.err != nil {
		return shop.Product{}, f.err
	}
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return shop.Product{}, shop.ErrInvalidProduct
}

type fakeCart struct {
	view shop.CartView
	err  error

	addedProduct int64
	addedQty     int
	delta        int
}

func (f *fakeCart) AddItem(_ context.Context, _, productID int64, qty int) (shop.CartView, error) {
	f.addedProduct, f.addedQty = productID, qty
	return f.view, f.err
}

func (f *fakeCart) AdjustItem(_ context.Context, _, productID int64, delta int) (shop.CartView, error) {
	f.addedProduct, f.delta = productID, delta
	return f.view, f.err
}

func (f *fakeCart) Get(_ context.Context, _ int64) (shop.CartView, error) {
	return f.view, f.err
}

type fakeOrders struct {
	view shop.OrderView
	err  error
}

func (f *fakeOrders) Checkout(_ context.Context, _ int64) (shop.OrderView, error) {
	return f.view, f.err
}
func (f *fakeOrders) Pay(_ context.Context, _, _ int64) (shop.OrderView, error) {
	return f.view, f.err
}
func (f *fakeOrders) Cancel(_ context.Context, _, _ int64) (shop.OrderView, error) {
	return f.view, f.err
}
func (f *fakeOrders) Get(_ context.Context, _, _ int64) (shop.OrderView, error) {
	return f.view, f.err
}

type fakeFavorites struct {
	ids []int64
	err error
}

func (f *fakeFavorites) Toggle(_ context.Context, _, _ int64) (bool, error) { return true, f.err }
func (f *fakeFavorites) List(_ context.Context, _ int64, _ string, _, _ int) ([]shop.Product, int, error) {
	return nil, 0, f.err
}
func (f *fakeFavorites) ListIDs(_ context.Context, _ int64) ([]int64, error) { return f.ids, f.err }

func setup(t *testing.T, cat *fakeCatalog, crt *fakeCart, ord *fakeOrders, fav *fakeFavorites) http.Handler {
	t.Helper()
	h := &ShopHandler{
		Catalog:   cat,
		Cart:      crt,
		Orders:    ord,
		Favorites: fav,
		Log:       zaptest.NewLogger(t),
	}
	router := NewRouter()
	h.Register(router)
	return router
}

func do(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set(userHeader, "42")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func testProduct() shop.Product {
	return shop.Product{
		ID:              1,
		Slug:            "whey-protein-1kg",
		Name:            "Whey Protein 1kg",
		Category:        shop.CategorySupplements,
		Price:           decimal.RequireFromString("39.90"),
		StockQty:        5,
		InventoryStatus: shop.InventoryAvailable,
		IsActive:        true,
	}
}

func TestListProducts(t *testing.T) {
	h := setup(t, &fakeCatalog{products: []shop.Product{testProduct()}}, &fakeCart{}, &fakeOrders{}, &fakeFavorites{})

	w := do(t, h, "GET", "/api/products?search=whey", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Items []struct {
			Slug  string `json:"slug"`
			Price string `json:"price"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Items) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Items[0].Price != "39.90" {
		t.Errorf("price rendered as %q, want 2 fraction digits", resp.Items[0].Price)
	}
}

func TestListProductsRejectsUnknownCategory(t *testing.T) {
	h := setup(t, &fakeCatalog{}, &fakeCart{}, &fakeOrders{}, &fakeFavorites{})
	if w := do(t, h, "GET", "/api/products?category=GADGETS", "", false); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetProductNotFound(t *testing.T) {
	h := setup(t, &fakeCatalog{}, &fakeCart{}, &fakeOrders{}, &fakeFavorites{})
	if w := do(t, h, "GET", "/api/products/nope", "", false); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestCartRequiresUser(t *testing.T) {
	h := setup(t, &fakeCatalog{}, &fakeCart{}, &fakeOrders{}, &fakeFavorites{})
	if w := do(t, h, "GET", "/api/cart", "", false); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAddCartItemDefaultsToOneUnit(t *testing.T) {
	crt := &fakeCart{view: shop.NewCartView(shop.CartActive, nil)}
	h := setup(t, &fakeCatalog{}, crt, &fakeOrders{}, &fakeFavorites{})

	w := do(t, h, "POST", "/api/cart/items", `{"product_id":7}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if crt.addedProduct != 7 || crt.addedQty != 1 {
		t.Fatalf("AddItem called with product=%d qty=%d", crt.addedProduct, crt.addedQty)
	}
}

func TestAddCartItemOutOfStock(t *testing.T) {
	crt := &fakeCart{err: shop.ErrOutOfStock}
	h := setup(t, &fakeCatalog{}, crt, &fakeOrders{}, &fakeFavorites{})

	w := do(t, h, "POST", "/api/cart/items", `{"product_id":7,"qty":3}`, true)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "OUT_OF_STOCK" {
		t.Errorf("code = %q, want OUT_OF_STOCK", body.Code)
	}
}

func TestAdjustCartItemValidatesDelta(t *testing.T) {
	h := setup(t, &fakeCatalog{}, &fakeCart{}, &fakeOrders{}, &fakeFavorites{})
	if w := do(t, h, "PATCH", "/api/cart/items/7", `{"delta":2}`, true); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetCartCarriesExpiryNotice(t *testing.T) {
	view := shop.NewCartView(shop.CartExpired, nil)
	view.Expired = true
	view.ExpiredReason = "CART_TIMEOUT"
	h := setup(t, &fakeCatalog{}, &fakeCart{view: view}, &fakeOrders{}, &fakeFavorites{})

	w := do(t, h, "GET", "/api/cart", "", true)
	var resp struct {
		Status        string `json:"status"`
		Expired       bool   `json:"expired"`
		ExpiredReason string `json:"expired_reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Expired || resp.ExpiredReason != "CART_TIMEOUT" || resp.Status != "EXPIRED" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	h := setup(t, &fakeCatalog{}, &fakeCart{}, &fakeOrders{err: shop.ErrCartEmpty}, &fakeFavorites{})
	if w := do(t, h, "POST", "/api/cart/checkout", "", true); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCheckoutReturnsOrder(t *testing.T) {
	ord := &fakeOrders{view: shop.OrderView{
		ID:       11,
		Status:   shop.OrderPendingPayment,
		Subtotal: decimal.RequireFromString("129.60"),
	}}
	h := setup(t, &fakeCatalog{}, &fakeCart{}, ord, &fakeFavorites{})

	w := do(t, h, "POST", "/api/cart/checkout", "", true)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp struct {
		ID       int64  `json:"id"`
		Status   string `json:"status"`
		Subtotal string `json:"subtotal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 11 || resp.Status != "PENDING_PAYMENT" || resp.Subtotal != "129.60" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestPayOrderStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{shop.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
		{shop.ErrOrderLocked, http.StatusConflict, "ORDER_LOCKED"},
		{shop.ErrSessionTimeout, http.StatusGone, "SESSION_TIMEOUT"},
	}
	for _, c := range cases {
		h := setup(t, &fakeCatalog{}, &fakeCart{}, &fakeOrders{err: c.err}, &fakeFavorites{})
		w := do(t, h, "POST", "/api/orders/11/pay", "", true)
		if w.Code != c.want {
			t.Errorf("%v: status = %d, want %d", c.err, w.Code, c.want)
			continue
		}
		var body errorBody
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Code != c.code {
			t.Errorf("%v: code = %q, want %q", c.err, body.Code, c.code)
		}
	}
}

func TestListCategories(t *testing.T) {
	h := setup(t, &fakeCatalog{}, &fakeCart{}, &fakeOrders{}, &fakeFavorites{})
	w := do(t, h, "GET", "/api/categories", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Categories []string `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Categories) != 4 || resp.Categories[0] != "HOME" {
		t.Fatalf("categories = %v", resp.Categories)
	}
}

func TestFavoriteIDs(t *testing.T) {
	h := setup(t, &fakeCatalog{}, &fakeCart{}, &fakeOrders{}, &fakeFavorites{ids: []int64{3, 9}})
	w := do(t, h, "GET", "/api/favorites/ids", "", true)
	var resp struct {
		ProductIDs []int64 `json:"product_ids"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.ProductIDs) != 2 || resp.ProductIDs[0] != 3 {
		t.Fatalf("ids = %v", resp.ProductIDs)
	}
}
