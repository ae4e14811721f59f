// Package checkout converts carts into orders and drives the order state
// machine. PENDING_PAYMENT is the only non-terminal state; pay converts the
// reservation into a sale (stock and reserved drop together), cancel merely
// releases it (reserved only). Mixing those two counter rules up is the one
// bug this package exists to prevent.
package checkout

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kafkax "github.com/omnisoho/fitshop/internal/kafka"
	"github.com/omnisoho/fitshop/internal/shop"
	"github.com/omnisoho/fitshop/internal/sweeper"
)

type Repo struct {
	DB       *pgxpool.Pool
	Sweeper  *sweeper.Sweeper
	Producer *kafkax.Producer // optional lifecycle event stream
	Log      *zap.Logger
	Service  string
}

// Checkout snapshots the user's ACTIVE cart into a PENDING_PAYMENT order.
// Prices are frozen at this instant; the cart flips to CHECKED_OUT with its
// items intact - they still back the live reservations until pay or cancel.
func (r *Repo) Checkout(ctx context.Context, userID int64) (shop.OrderView, error) {
	if _, err := r.Sweeper.ExpireUser(ctx, userID); err != nil {
		return shop.OrderView{}, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return shop.OrderView{}, err
	}
	defer tx.Rollback(ctx)

	var (
		cartID int64
		status shop.CartStatus
	)
	err = tx.QueryRow(ctx, `SELECT id, status FROM carts WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&cartID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.OrderView{}, shop.ErrCartEmpty
	}
	if err != nil {
		return shop.OrderView{}, err
	}
	switch status {
	case shop.CartCheckedOut:
		return shop.OrderView{}, shop.ErrCartLocked
	case shop.CartExpired:
		return shop.OrderView{}, shop.ErrSessionTimeout
	}

	rows, err := tx.Query(ctx, `
		SELECT ci.product_id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id=$1
		ORDER BY ci.id`, cartID)
	if err != nil {
		return shop.OrderView{}, err
	}
	var lines []shop.OrderLine
	for rows.Next() {
		var l shop.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity); err != nil {
			rows.Close()
			return shop.OrderView{}, err
		}
		l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return shop.OrderView{}, err
	}
	if len(lines) == 0 {
		return shop.OrderView{}, shop.ErrCartEmpty
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
	}

	var orderID int64
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, status, subtotal)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`, userID, shop.OrderPendingPayment, subtotal).
		Scan(&orderID, &createdAt)
	if err != nil {
		return shop.OrderView{}, err
	}
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)`, orderID, l.ProductID, l.Quantity, l.UnitPrice); err != nil {
			return shop.OrderView{}, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE carts SET status=$2, updated_at=now() WHERE id=$1`,
		cartID, shop.CartCheckedOut); err != nil {
		return shop.OrderView{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return shop.OrderView{}, err
	}

	r.Log.Info("order created", zap.Int64("user_id", userID), zap.Int64("order_id", orderID),
		zap.String("subtotal", subtotal.StringFixed(2)))
	r.publish(shop.TopicOrderCreated, shop.EventOrderCreated, userID, orderID,
		shop.OrderCreatedPayload{OrderID: orderID, UserID: userID, Subtotal: subtotal.StringFixed(2), Items: eventItems(lines)})

	return shop.OrderView{ID: orderID, Status: shop.OrderPendingPayment, Subtotal: subtotal, CreatedAt: createdAt, Items: lines}, nil
}

// Pay finalizes a pending order: each reservation becomes a sale, so stock
// and reserved drop by the same units in one statement. The cart is wiped
// and reset for the next session.
func (r *Repo) Pay(ctx context.Context, userID, orderID int64) (shop.OrderView, error) {
	return r.settle(ctx, userID, orderID, shop.OrderPaid)
}

// Cancel releases a pending order's reservations without touching stock -
// nothing was sold.
func (r *Repo) Cancel(ctx context.Context, userID, orderID int64) (shop.OrderView, error) {
	return r.settle(ctx, userID, orderID, shop.OrderCancelled)
}

func (r *Repo) settle(ctx context.Context, userID, orderID int64, target shop.OrderStatus) (shop.OrderView, error) {
	if _, err := r.Sweeper.ExpireUser(ctx, userID); err != nil {
		return shop.OrderView{}, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return shop.OrderView{}, err
	}
	defer tx.Rollback(ctx)

	var (
		status    shop.OrderStatus
		subtotal  decimal.Decimal
		createdAt time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT status, subtotal, created_at FROM orders
		WHERE id=$1 AND user_id=$2 FOR UPDATE`, orderID, userID).
		Scan(&status, &subtotal, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.OrderView{}, shop.ErrOrderNotFound
	}
	if err != nil {
		return shop.OrderView{}, err
	}
	if status == shop.OrderExpired {
		return shop.OrderView{}, shop.ErrSessionTimeout
	}
	if !shop.CanTransition(status, target) {
		return shop.OrderView{}, shop.ErrOrderLocked
	}

	lines, err := r.orderLines(ctx, tx, orderID)
	if err != nil {
		return shop.OrderView{}, err
	}

	for _, l := range lines {
		if err := r.settleProduct(ctx, tx, l.ProductID, l.Quantity, target); err != nil {
			return shop.OrderView{}, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, target); err != nil {
		return shop.OrderView{}, err
	}

	// The cart becomes reusable: items wiped, status back to ACTIVE.
	if _, err := tx.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE user_id=$1)`, userID); err != nil {
		return shop.OrderView{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET status=$2, updated_at=now() WHERE user_id=$1`,
		userID, shop.CartActive); err != nil {
		return shop.OrderView{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return shop.OrderView{}, err
	}

	if target == shop.OrderPaid {
		r.Log.Info("order paid", zap.Int64("user_id", userID), zap.Int64("order_id", orderID))
		r.publish(shop.TopicOrderPaid, shop.EventOrderPaid, userID, orderID,
			shop.OrderPaidPayload{OrderID: orderID, UserID: userID, Items: eventItems(lines)})
	} else {
		r.Log.Info("order cancelled", zap.Int64("user_id", userID), zap.Int64("order_id", orderID))
		r.publish(shop.TopicOrderCancelled, shop.EventOrderCancelled, userID, orderID,
			shop.OrderCancelledPayload{OrderID: orderID, UserID: userID, Items: eventItems(lines)})
	}

	return shop.OrderView{ID: orderID, Status: target, Subtotal: subtotal, CreatedAt: createdAt, Items: lines}, nil
}

// settleProduct applies the counter rule for one product under its row lock.
// The deltas come from shop.SettlementDeltas: pay drops stock and reserved
// together, cancel drops reserved only.
func (r *Repo) settleProduct(ctx context.Context, tx pgx.Tx, productID int64, qty int, target shop.OrderStatus) error {
	stockDelta, reservedDelta := shop.SettlementDeltas(target, qty)
	var (
		stockQty, reservedQty int
		stored                shop.InventoryStatus
	)
	err := tx.QueryRow(ctx, `
		UPDATE products SET stock_qty = stock_qty + $2, reserved_qty = reserved_qty + $3, updated_at=now()
		WHERE id=$1
		RETURNING stock_qty, reserved_qty, inventory_status`,
		productID, stockDelta, reservedDelta).Scan(&stockQty, &reservedQty, &stored)
	if err != nil {
		return err
	}
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

// Get runs the per-user timeout check, then loads the order scoped to its
// owner. An order id belonging to someone else reads as not found.
func (r *Repo) Get(ctx context.Context, userID, orderID int64) (shop.OrderView, error) {
	if _, err := r.Sweeper.ExpireUser(ctx, userID); err != nil {
		return shop.OrderView{}, err
	}

	var view shop.OrderView
	err := r.DB.QueryRow(ctx, `
		SELECT id, status, subtotal, created_at FROM orders WHERE id=$1 AND user_id=$2`,
		orderID, userID).Scan(&view.ID, &view.Status, &view.Subtotal, &view.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.OrderView{}, shop.ErrOrderNotFound
	}
	if err != nil {
		return shop.OrderView{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.product_id, p.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id=$1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return shop.OrderView{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l shop.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice); err != nil {
			return shop.OrderView{}, err
		}
		l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		view.Items = append(view.Items, l)
	}
	return view, rows.Err()
}

func (r *Repo) orderLines(ctx context.Context, tx pgx.Tx, orderID int64) ([]shop.OrderLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity, unit_price FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []shop.OrderLine
	for rows.Next() {
		var l shop.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func eventItems(lines []shop.OrderLine) []shop.EventItem {
	out := make([]shop.EventItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, shop.EventItem{ProductID: l.ProductID, Qty: l.Quantity})
	}
	return out
}

func (r *Repo) publish(topic, eventType string, userID, orderID int64, payload any) {
	if r.Producer == nil {
		return
	}
	ev := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload:       kafkax.MustMarshal(payload),
	}
	r.Producer.Publish(topic, shop.PartitionKey(userID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
