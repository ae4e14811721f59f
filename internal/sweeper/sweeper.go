// Package sweeper reclaims reservations held by idle carts and unpaid
// orders. Staleness is judged purely from stored timestamps against a
// configurable window; expiry is an explicit tagged state, not a cache TTL.
package sweeper

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/omnisoho/fitshop/internal/kafka"
	"github.com/omnisoho/fitshop/internal/shop"
)

// Machine-readable reasons carried back to the client as a one-time notice.
const (
	ReasonOrderTimeout = "ORDER_TIMEOUT"
	ReasonCartTimeout  = "CART_TIMEOUT"
)

type Sweeper struct {
	DB       *pgxpool.Pool
	Log      *zap.Logger
	Window   time.Duration
	Producer *kafkax.Producer // optional expiry event stream
	Service  string
}

// Result reports what the per-user check just reclaimed, if anything.
type Result struct {
	Expired bool
	Reason  string
}

type Stats struct {
	Candidates    int
	ExpiredOrders int
	ExpiredCarts  int
}

// ExpireUser runs both staleness checks for one user inside one transaction.
// A stale pending order takes precedence over a stale cart: an order's
// existence implies the cart was already locked at checkout, so only one
// path applies per run. Idempotent - expired entities no longer qualify.
func (s *Sweeper) ExpireUser(ctx context.Context, userID int64) (Result, error) {
	cutoff := time.Now().Add(-s.Window)

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback(ctx)

	if expired, err := s.expireStaleOrder(ctx, tx, userID, cutoff); err != nil {
		return Result{}, err
	} else if expired {
		if err := tx.Commit(ctx); err != nil {
			return Result{}, err
		}
		return Result{Expired: true, Reason: ReasonOrderTimeout}, nil
	}

	if expired, err := s.expireStaleCart(ctx, tx, userID, cutoff); err != nil {
		return Result{}, err
	} else if expired {
		if err := tx.Commit(ctx); err != nil {
			return Result{}, err
		}
		return Result{Expired: true, Reason: ReasonCartTimeout}, nil
	}

	return Result{}, nil
}

func (s *Sweeper) expireStaleOrder(ctx context.Context, tx pgx.Tx, userID int64, cutoff time.Time) (bool, error) {
	var orderID int64
	err := tx.QueryRow(ctx, `
		SELECT id FROM orders
		WHERE user_id=$1 AND status=$2 AND created_at < $3
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE`, userID, shop.OrderPendingPayment, cutoff).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	items, err := s.releaseOrderReservations(ctx, tx, orderID)
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`,
		orderID, shop.OrderExpired); err != nil {
		return false, err
	}

	// The cart was locked at checkout and still holds the order's line
	// items; wipe it and tag it EXPIRED so the next add reactivates it.
	if _, err := tx.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE user_id=$1)`, userID); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET status=$2, updated_at=now() WHERE user_id=$1`,
		userID, shop.CartExpired); err != nil {
		return false, err
	}

	s.Log.Info("expired stale pending order",
		zap.Int64("user_id", userID), zap.Int64("order_id", orderID), zap.Int("items", len(items)))
	s.publish(shop.TopicOrderExpired, shop.EventOrderExpired, userID,
		shop.OrderExpiredPayload{OrderID: orderID, UserID: userID, Items: items})
	return true, nil
}

func (s *Sweeper) expireStaleCart(ctx context.Context, tx pgx.Tx, userID int64, cutoff time.Time) (bool, error) {
	var (
		cartID    int64
		status    shop.CartStatus
		updatedAt time.Time
	)
	err := tx.QueryRow(ctx, `
		SELECT id, status, updated_at FROM carts WHERE user_id=$1 FOR UPDATE`, userID).
		Scan(&cartID, &status, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if status != shop.CartActive || !updatedAt.Before(cutoff) {
		return false, nil
	}

	items, err := s.releaseCartReservations(ctx, tx, cartID)
	if err != nil {
		return false, err
	}
	if len(items) == 0 {
		// An idle empty cart holds nothing worth reclaiming.
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `UPDATE carts SET status=$2, updated_at=now() WHERE id=$1`,
		cartID, shop.CartExpired); err != nil {
		return false, err
	}

	s.Log.Info("expired stale active cart",
		zap.Int64("user_id", userID), zap.Int64("cart_id", cartID), zap.Int("items", len(items)))
	s.publish(shop.TopicCartExpired, shop.EventCartExpired, userID,
		shop.CartExpiredPayload{CartID: cartID, UserID: userID, Items: items})
	return true, nil
}

// releaseOrderReservations gives back reserved units for every order item.
// Stock stays untouched - nothing was sold.
func (s *Sweeper) releaseOrderReservations(ctx context.Context, tx pgx.Tx, orderID int64) ([]shop.EventItem, error) {
	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	items, err := scanEventItems(rows)
	if err != nil {
		return nil, err
	}
	return items, s.releaseReserved(ctx, tx, items)
}

func (s *Sweeper) releaseCartReservations(ctx context.Context, tx pgx.Tx, cartID int64) ([]shop.EventItem, error) {
	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM cart_items WHERE cart_id=$1`, cartID)
	if err != nil {
		return nil, err
	}
	items, err := scanEventItems(rows)
	if err != nil {
		return nil, err
	}
	return items, s.releaseReserved(ctx, tx, items)
}

func (s *Sweeper) releaseReserved(ctx context.Context, tx pgx.Tx, items []shop.EventItem) error {
	for _, it := range items {
		stockDelta, reservedDelta := shop.SettlementDeltas(shop.OrderExpired, it.Qty)
		var stockQty, reservedQty int
		var stored shop.InventoryStatus
		err := tx.QueryRow(ctx, `
			UPDATE products SET stock_qty = stock_qty + $2, reserved_qty = reserved_qty + $3, updated_at = now()
			WHERE id=$1
			RETURNING stock_qty, reserved_qty, inventory_status`,
			it.ProductID, stockDelta, reservedDelta).Scan(&stockQty, &reservedQty, &stored)
		if err != nil {
			return err
		}
		if next := shop.InventoryStatusFor(stockQty, reservedQty); next != stored {
			if _, err := tx.Exec(ctx, `UPDATE products SET inventory_status=$2 WHERE id=$1`,
				it.ProductID, next); err != nil {
				return err
			}
			s.Log.Info("inventory status changed",
				zap.Int64("product_id", it.ProductID),
				zap.String("from", string(stored)), zap.String("to", string(next)))
		}
	}
	return nil
}

func scanEventItems(rows pgx.Rows) ([]shop.EventItem, error) {
	defer rows.Close()
	var items []shop.EventItem
	for rows.Next() {
		var it shop.EventItem
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SweepAll unions users with stale pending orders and users with stale
// non-empty active carts, then re-runs the per-user check for each. A
// transiently unreachable store must not take down the host: errors are
// logged and a zero-effect result returned.
func (s *Sweeper) SweepAll(ctx context.Context) Stats {
	cutoff := time.Now().Add(-s.Window)

	rows, err := s.DB.Query(ctx, `
		SELECT user_id FROM orders WHERE status=$1 AND created_at < $3
		UNION
		SELECT c.user_id FROM carts c
		WHERE c.status=$2 AND c.updated_at < $3
		  AND EXISTS (SELECT 1 FROM cart_items ci WHERE ci.cart_id = c.id)`,
		shop.OrderPendingPayment, shop.CartActive, cutoff)
	if err != nil {
		s.Log.Warn("sweep candidate query failed", zap.Error(err))
		return Stats{}
	}
	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			s.Log.Warn("sweep candidate scan failed", zap.Error(err))
			return Stats{}
		}
		userIDs = append(userIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		s.Log.Warn("sweep candidate query failed", zap.Error(err))
		return Stats{}
	}

	stats := Stats{Candidates: len(userIDs)}
	for _, uid := range userIDs {
		res, err := s.ExpireUser(ctx, uid)
		if err != nil {
			s.Log.Warn("sweep failed for user", zap.Int64("user_id", uid), zap.Error(err))
			continue
		}
		switch res.Reason {
		case ReasonOrderTimeout:
			stats.ExpiredOrders++
		case ReasonCartTimeout:
			stats.ExpiredCarts++
		}
	}
	if stats.Candidates > 0 {
		s.Log.Info("sweep finished",
			zap.Int("candidates", stats.Candidates),
			zap.Int("expired_orders", stats.ExpiredOrders),
			zap.Int("expired_carts", stats.ExpiredCarts))
	}
	return stats
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.SweepAll(ctx)
		}
	}
}

func (s *Sweeper) publish(topic, eventType string, userID int64, payload any) {
	if s.Producer == nil {
		return
	}
	ev := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		CorrelationID: strconv.FormatInt(userID, 10),
		Payload:       kafkax.MustMarshal(payload),
	}
	s.Producer.Publish(topic, shop.PartitionKey(userID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
