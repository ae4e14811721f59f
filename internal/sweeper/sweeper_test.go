package sweeper

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/omnisoho/fitshop/internal/pgxtest"
	"github.com/omnisoho/fitshop/internal/shop"
)

func testSweeper(t *testing.T) *Sweeper {
	return &Sweeper{Log: zaptest.NewLogger(t), Window: 30 * time.Minute}
}

func TestExpireStaleOrderReleasesReservationOnly(t *testing.T) {
	f := pgxtest.New(t,
		pgxtest.Step{Contains: "FROM orders", Rows: [][]any{{int64(9)}}},
		pgxtest.Step{Contains: "FROM order_items", Rows: [][]any{{int64(7), 2}}},
		pgxtest.Step{Contains: "UPDATE products SET stock_qty", Rows: [][]any{{5, 0, shop.InventoryReserved}}},
		pgxtest.Step{Contains: "SET inventory_status"},
		pgxtest.Step{Contains: "UPDATE orders SET status"},
		pgxtest.Step{Contains: "DELETE FROM cart_items"},
		pgxtest.Step{Contains: "UPDATE carts SET status"},
	)
	expired, err := testSweeper(t).expireStaleOrder(context.Background(), f, 42, time.Now())
	if err != nil || !expired {
		t.Fatalf("expired=%v err=%v, want true, nil", expired, err)
	}
	f.Done()

	// Expiry is a release, never a sale: stock delta must be zero.
	args := f.Args[2]
	if args[1].(int) != 0 || args[2].(int) != -2 {
		t.Fatalf("deltas = (%v, %v), want (0, -2)", args[1], args[2])
	}
}

func TestExpireStaleOrderSecondPassIsNoOp(t *testing.T) {
	// An already-EXPIRED order no longer matches the PENDING_PAYMENT
	// predicate, so a repeated sweep mutates nothing.
	f := pgxtest.New(t, pgxtest.Step{Contains: "FROM orders"})
	expired, err := testSweeper(t).expireStaleOrder(context.Background(), f, 42, time.Now())
	if err != nil || expired {
		t.Fatalf("expired=%v err=%v, want false, nil", expired, err)
	}
	f.Done()
	if len(f.SQL) != 1 {
		t.Fatalf("no-op pass ran %d statements, want only the candidate lookup", len(f.SQL))
	}
}

func TestExpireStaleCartSecondPassIsNoOp(t *testing.T) {
	f := pgxtest.New(t, pgxtest.Step{
		Contains: "FROM carts",
		Rows:     [][]any{{int64(1), shop.CartExpired, time.Now().Add(-2 * time.Hour)}},
	})
	expired, err := testSweeper(t).expireStaleCart(context.Background(), f, 42, time.Now().Add(-30*time.Minute))
	if err != nil || expired {
		t.Fatalf("expired=%v err=%v, want false, nil", expired, err)
	}
	f.Done()
	if len(f.SQL) != 1 {
		t.Fatalf("no-op pass ran %d statements, want only the candidate lookup", len(f.SQL))
	}
}

func TestExpireStaleCartSkipsEmptyCart(t *testing.T) {
	f := pgxtest.New(t,
		pgxtest.Step{Contains: "FROM carts", Rows: [][]any{{int64(1), shop.CartActive, time.Now().Add(-2 * time.Hour)}}},
		pgxtest.Step{Contains: "FROM cart_items"},
	)
	expired, err := testSweeper(t).expireStaleCart(context.Background(), f, 42, time.Now().Add(-30*time.Minute))
	if err != nil || expired {
		t.Fatalf("expired=%v err=%v, want false, nil", expired, err)
	}
	f.Done()
}
