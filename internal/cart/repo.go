// Package cart implements the reservation engine: every mutation runs the
// whole read-check-write sequence inside one transaction so a concurrent
// writer on the same product can never observe, or create, an intermediate
// state. At every commit point reserved_qty <= stock_qty holds for every
// product touched.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/omnisoho/fitshop/internal/shop"
	"github.com/omnisoho/fitshop/internal/sweeper"
)

const (
	// Only the cart-creation race retries: two concurrent requests both
	// lazily creating the same user's cart trip the unique(user_id) index.
	maxCreateRetries = 2
	retryBackoff     = 25 * time.Millisecond

	uniqueViolation = "23505"
)

type Repo struct {
	DB      *pgxpool.Pool
	Sweeper *sweeper.Sweeper
	Log     *zap.Logger
}

// AddItem reserves qty more units of a product for the user's cart.
func (r *Repo) AddItem(ctx context.Context, userID, productID int64, qty int) (shop.CartView, error) {
	if qty <= 0 {
		return shop.CartView{}, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	var view shop.CartView
	err := r.withCreateRetry(ctx, func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			return r.addItemTx(ctx, tx, userID, productID, qty)
		})
	})
	if err != nil {
		return shop.CartView{}, err
	}
	view, err = r.project(ctx, userID)
	return view, err
}

// AdjustItem bumps a line item by exactly +1 or -1. Missing cart or line
// item is a no-op, not an error.
func (r *Repo) AdjustItem(ctx context.Context, userID, productID int64, delta int) (shop.CartView, error) {
	if delta != 1 && delta != -1 {
		return shop.CartView{}, fmt.Errorf("delta must be +1 or -1, got %d", delta)
	}
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		return r.adjustItemTx(ctx, tx, userID, productID, delta)
	})
	if err != nil {
		return shop.CartView{}, err
	}
	return r.project(ctx, userID)
}

// Get runs the per-user timeout check, then projects the cart. When the
// check just reclaimed something the view carries a one-time notice.
func (r *Repo) Get(ctx context.Context, userID int64) (shop.CartView, error) {
	res, err := r.Sweeper.ExpireUser(ctx, userID)
	if err != nil {
		return shop.CartView{}, err
	}
	view, err := r.project(ctx, userID)
	if err != nil {
		return shop.CartView{}, err
	}
	view.Expired = res.Expired
	view.ExpiredReason = res.Reason
	return view, nil
}

func (r *Repo) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// withCreateRetry reruns fn on the cart-creation unique violation, up to
// maxCreateRetries times with linear backoff. Business failures and every
// other error propagate untouched.
func (r *Repo) withCreateRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isUniqueViolation(err) || attempt >= maxCreateRetries {
			return err
		}
		r.Log.Debug("cart creation race, retrying", zap.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * retryBackoff):
		}
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *Repo) addItemTx(ctx context.Context, tx pgx.Tx, userID, productID int64, qty int) error {
	p, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return err
	}
	if !shop.CanReserve(p.StockQty, p.ReservedQty, qty) {
		return shop.ErrOutOfStock
	}

	cartID, err := r.ensureActiveCart(ctx, tx, userID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		cartID, productID, qty); err != nil {
		return err
	}

	if err := touchCart(ctx, tx, cartID); err != nil {
		return err
	}

	return r.reserve(ctx, tx, productID, qty, p.InventoryStatus)
}

func (r *Repo) adjustItemTx(ctx context.Context, tx pgx.Tx, userID, productID int64, delta int) error {
	// Lock order matches addItemTx: product row first, then cart. Concurrent
	// add and adjust on the same user and product queue instead of
	// deadlocking. Only the row lock is taken: releasing must work even for
	// a product deactivated after it entered the cart.
	p, err := lockProductRow(ctx, tx, productID)
	if errors.Is(err, shop.ErrInvalidProduct) {
		return nil // no product row, so no line item either
	}
	if err != nil {
		return err
	}

	var (
		cartID int64
		status shop.CartStatus
	)
	err = tx.QueryRow(ctx, `SELECT id, status FROM carts WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&cartID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil // nothing to adjust
	}
	if err != nil {
		return err
	}
	switch status {
	case shop.CartCheckedOut:
		return shop.ErrCartLocked
	case shop.CartExpired:
		if _, err := tx.Exec(ctx, `UPDATE carts SET status=$2 WHERE id=$1`, cartID, shop.CartActive); err != nil {
			return err
		}
	}

	var itemID int64
	var quantity int
	err = tx.QueryRow(ctx, `
		SELECT id, quantity FROM cart_items WHERE cart_id=$1 AND product_id=$2 FOR UPDATE`,
		cartID, productID).Scan(&itemID, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil // nothing to adjust
	}
	if err != nil {
		return err
	}

	if delta == 1 {
		if !p.IsActive {
			return shop.ErrInvalidProduct
		}
		if !shop.CanReserve(p.StockQty, p.ReservedQty, 1) {
			return shop.ErrOutOfStock
		}
		if _, err := tx.Exec(ctx, `UPDATE cart_items SET quantity = quantity + 1 WHERE id=$1`, itemID); err != nil {
			return err
		}
		if err := touchCart(ctx, tx, cartID); err != nil {
			return err
		}
		return r.reserve(ctx, tx, productID, 1, p.InventoryStatus)
	}

	// A line item at zero is deleted, never stored.
	if quantity <= 1 {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, itemID); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(ctx, `UPDATE cart_items SET quantity = quantity - 1 WHERE id=$1`, itemID); err != nil {
			return err
		}
	}
	if err := touchCart(ctx, tx, cartID); err != nil {
		return err
	}
	return r.release(ctx, tx, productID, 1, p.InventoryStatus)
}

// lockProduct loads and row-locks a product, failing on missing or inactive.
func lockProduct(ctx context.Context, tx pgx.Tx, productID int64) (shop.Product, error) {
	p, err := lockProductRow(ctx, tx, productID)
	if err != nil {
		return p, err
	}
	if !p.IsActive {
		return p, shop.ErrInvalidProduct
	}
	return p, nil
}

func lockProductRow(ctx context.Context, tx pgx.Tx, productID int64) (shop.Product, error) {
	var p shop.Product
	err := tx.QueryRow(ctx, `
		SELECT id, stock_qty, reserved_qty, inventory_status, is_active
		FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.StockQty, &p.ReservedQty, &p.InventoryStatus, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, shop.ErrInvalidProduct
	}
	return p, err
}

// ensureActiveCart lazily creates the user's cart, reactivates an EXPIRED
// one, and refuses a CHECKED_OUT one. The INSERT deliberately has no
// ON CONFLICT clause: the unique violation is the documented race signal the
// caller retries on.
func (r *Repo) ensureActiveCart(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	var (
		cartID int64
		status shop.CartStatus
	)
	err := tx.QueryRow(ctx, `SELECT id, status FROM carts WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&cartID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, `INSERT INTO carts (user_id, status) VALUES ($1, $2) RETURNING id`,
			userID, shop.CartActive).Scan(&cartID)
		return cartID, err
	}
	if err != nil {
		return 0, err
	}
	switch status {
	case shop.CartCheckedOut:
		return 0, shop.ErrCartLocked
	case shop.CartExpired:
		if _, err := tx.Exec(ctx, `UPDATE carts SET status=$2 WHERE id=$1`, cartID, shop.CartActive); err != nil {
			return 0, err
		}
	}
	return cartID, nil
}

func touchCart(ctx context.Context, tx pgx.Tx, cartID int64) error {
	_, err := tx.Exec(ctx, `UPDATE carts SET updated_at=now() WHERE id=$1`, cartID)
	return err
}

// reserve increments reserved_qty and re-checks the invariant on the value
// the increment actually produced. The pre-check and this mutation are not
// the same instant under concurrent writers, so the invariant is enforced
// again before commit; failing here rolls the whole unit of work back.
func (r *Repo) reserve(ctx context.Context, tx pgx.Tx, productID int64, qty int, stored shop.InventoryStatus) error {
	var stockQty, reservedQty int
	err := tx.QueryRow(ctx, `
		UPDATE products SET reserved_qty = reserved_qty + $2, updated_at=now()
		WHERE id=$1
		RETURNING stock_qty, reserved_qty`, productID, qty).Scan(&stockQty, &reservedQty)
	if err != nil {
		return err
	}
	if reservedQty > stockQty {
		return shop.ErrOutOfStock
	}
	return r.persistStatus(ctx, tx, productID, stockQty, reservedQty, stored)
}

func (r *Repo) release(ctx context.Context, tx pgx.Tx, productID int64, qty int, stored shop.InventoryStatus) error {
	var stockQty, reservedQty int
	err := tx.QueryRow(ctx, `
		UPDATE products SET reserved_qty = reserved_qty - $2, updated_at=now()
		WHERE id=$1
		RETURNING stock_qty, reserved_qty`, productID, qty).Scan(&stockQty, &reservedQty)
	if err != nil {
		return err
	}
	return r.persistStatus(ctx, tx, productID, stockQty, reservedQty, stored)
}

func (r *Repo) persistStatus(ctx context.Context, tx pgx.Tx, productID int64, stockQty, reservedQty int, stored shop.InventoryStatus) error {
	next := shop.InventoryStatusFor(stockQty, reservedQty)
	if next == stored {
		return nil
	}
	if _, err := tx.Exec(ctx, `UPDATE products SET inventory_status=$2 WHERE id=$1`, productID, next); err != nil {
		return err
	}
	r.Log.Info("inventory status changed",
		zap.Int64("product_id", productID),
		zap.String("from", string(stored)), zap.String("to", string(next)))
	return nil
}

// project joins cart items with product display fields. No cart yet means an
// empty ACTIVE view - the cart itself is created lazily on first add.
func (r *Repo) project(ctx context.Context, userID int64) (shop.CartView, error) {
	var (
		cartID int64
		status shop.CartStatus
	)
	err := r.DB.QueryRow(ctx, `SELECT id, status FROM carts WHERE user_id=$1`, userID).
		Scan(&cartID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.NewCartView(shop.CartActive, nil), nil
	}
	if err != nil {
		return shop.CartView{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT ci.product_id, p.name, p.price, p.image_url, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id=$1
		ORDER BY ci.id`, cartID)
	if err != nil {
		return shop.CartView{}, err
	}
	defer rows.Close()

	var lines []shop.CartLine
	for rows.Next() {
		var l shop.CartLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Price, &l.ImageURL, &l.Quantity); err != nil {
			return shop.CartView{}, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return shop.CartView{}, err
	}
	return shop.NewCartView(status, lines), nil
}
