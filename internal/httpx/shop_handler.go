package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/omnisoho/fitshop/internal/shop"
)

// Consumer-side interfaces: the handler names only what it calls, so tests
// can swap fakes in without touching the repos.

type CatalogService interface {
	List(ctx context.Context, category *shop.Category, search string, take, skip int) ([]shop.Product, int, error)
	BySlug(ctx context.Context, slug string) (shop.Product, error)
}

type CartService interface {
	AddItem(ctx context.Context, userID, productID int64, qty int) (shop.CartView, error)
	AdjustItem(ctx context.Context, userID, productID int64, delta int) (shop.CartView, error)
	Get(ctx context.Context, userID int64) (shop.CartView, error)
}

type OrderService interface {
	Checkout(ctx context.Context, userID int64) (shop.OrderView, error)
	Pay(ctx context.Context, userID, orderID int64) (shop.OrderView, error)
	Cancel(ctx context.Context, userID, orderID int64) (shop.OrderView, error)
	Get(ctx context.Context, userID, orderID int64) (shop.OrderView, error)
}

type FavoritesService interface {
	Toggle(ctx context.Context, userID, productID int64) (bool, error)
	List(ctx context.Context, userID int64, search string, take, skip int) ([]shop.Product, int, error)
	ListIDs(ctx context.Context, userID int64) ([]int64, error)
}

type ShopHandler struct {
	Catalog   CatalogService
	Cart      CartService
	Orders    OrderService
	Favorites FavoritesService
	Log       *zap.Logger
}

func (h *ShopHandler) Register(r *chi.Mux) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", h.listCategories)
		r.Get("/products", h.listProducts)
		r.Get("/products/{slug}", h.getProduct)

		r.Get("/favorites", h.listFavorites)
		r.Get("/favorites/ids", h.listFavoriteIDs)
		r.Post("/favorites/{productID}", h.toggleFavorite)

		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addCartItem)
		r.Patch("/cart/items/{productID}", h.adjustCartItem)
		r.Post("/cart/checkout", h.checkout)

		r.Get("/orders/{orderID}", h.getOrder)
		r.Post("/orders/{orderID}/pay", h.payOrder)
		r.Post("/orders/{orderID}/cancel", h.cancelOrder)
	})
}

// The auth middleware upstream verifies the user and forwards the numeric id.
const userHeader = "X-User-ID"

func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(userHeader), 10, 64)
	return id, err == nil && id > 0
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps each business error to its own outward signal; nothing is
// collapsed into a generic failure. Unknown errors are logged and become 500.
func (h *ShopHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shop.ErrInvalidProduct):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "INVALID_PRODUCT"})
	case errors.Is(err, shop.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: "ORDER_NOT_FOUND"})
	case errors.Is(err, shop.ErrOutOfStock):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "OUT_OF_STOCK"})
	case errors.Is(err, shop.ErrCartLocked):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "CART_LOCKED"})
	case errors.Is(err, shop.ErrOrderLocked):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "ORDER_LOCKED"})
	case errors.Is(err, shop.ErrCartEmpty):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "CART_EMPTY"})
	case errors.Is(err, shop.ErrSessionTimeout):
		writeJSON(w, http.StatusGone, errorBody{Error: err.Error(), Code: "SESSION_TIMEOUT"})
	default:
		h.Log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"})
	}
}

func (h *ShopHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": shop.Categories()})
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var category *shop.Category
	if raw := q.Get("category"); raw != "" {
		c := shop.Category(raw)
		if !shop.ValidCategory(c) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown category", Code: "BAD_CATEGORY"})
			return
		}
		// HOME is the storefront landing page: no category filter.
		if c != shop.CategoryHome {
			category = &c
		}
	}
	take := intQuery(q.Get("take"), 20)
	skip := intQuery(q.Get("skip"), 0)

	items, total, err := h.Catalog.List(r.Context(), category, q.Get("search"), take, skip)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductListDTO(items, total))
}

func (h *ShopHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.BySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *ShopHandler) listFavorites(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	q := r.URL.Query()
	items, total, err := h.Favorites.List(r.Context(), uid, q.Get("search"), intQuery(q.Get("take"), 20), intQuery(q.Get("skip"), 0))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductListDTO(items, total))
}

func (h *ShopHandler) listFavoriteIDs(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	ids, err := h.Favorites.ListIDs(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_ids": ids})
}

func (h *ShopHandler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	pid, ok := int64Param(r, "productID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid product id", Code: "BAD_REQUEST"})
		return
	}
	fav, err := h.Favorites.Toggle(r.Context(), uid, pid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteToggleDTO{ProductID: pid, Favorite: fav})
}

func (h *ShopHandler) getCart(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	view, err := h.Cart.Get(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(view))
}

type addItemReq struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

func (h *ShopHandler) addCartItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json", Code: "BAD_REQUEST"})
		return
	}
	if req.Qty == 0 {
		req.Qty = 1 // the storefront always adds one unit at a time
	}
	if req.Qty < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "qty must be positive", Code: "BAD_REQUEST"})
		return
	}
	view, err := h.Cart.AddItem(r.Context(), uid, req.ProductID, req.Qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(view))
}

type adjustItemReq struct {
	Delta int `json:"delta"`
}

func (h *ShopHandler) adjustCartItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	pid, ok := int64Param(r, "productID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid product id", Code: "BAD_REQUEST"})
		return
	}
	var req adjustItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.Delta != 1 && req.Delta != -1) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "delta must be 1 or -1", Code: "BAD_REQUEST"})
		return
	}
	view, err := h.Cart.AdjustItem(r.Context(), uid, pid, req.Delta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartDTO(view))
}

func (h *ShopHandler) checkout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	view, err := h.Orders.Checkout(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(view))
}

func (h *ShopHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	h.orderOp(w, r, h.Orders.Get, http.StatusOK)
}

func (h *ShopHandler) payOrder(w http.ResponseWriter, r *http.Request) {
	h.orderOp(w, r, h.Orders.Pay, http.StatusOK)
}

func (h *ShopHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.orderOp(w, r, h.Orders.Cancel, http.StatusOK)
}

func (h *ShopHandler) orderOp(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, int64) (shop.OrderView, error), code int) {
	uid, ok := userID(r)
	if !ok {
		unauthorized(w)
		return
	}
	oid, ok := int64Param(r, "orderID")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid order id", Code: "BAD_REQUEST"})
		return
	}
	view, err := op(r.Context(), uid, oid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, code, toOrderDTO(view))
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid user", Code: "UNAUTHORIZED"})
}

func int64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
