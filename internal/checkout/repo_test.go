package checkout

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/omnisoho/fitshop/internal/pgxtest"
	"github.com/omnisoho/fitshop/internal/shop"
)

func TestSettleProductCounterRule(t *testing.T) {
	cases := []struct {
		name                      string
		target                    shop.OrderStatus
		stockDelta, reservedDelta int
		returned                  []any
	}{
		// Paying sells the units: stock and reserved drop together.
		{"pay", shop.OrderPaid, -3, -3, []any{2, 0, shop.InventoryReserved}},
		// Cancelling releases the claim only: stock stays.
		{"cancel", shop.OrderCancelled, 0, -3, []any{5, 0, shop.InventoryReserved}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := pgxtest.New(t,
				pgxtest.Step{
					Contains: "UPDATE products SET stock_qty = stock_qty + $2, reserved_qty = reserved_qty + $3",
					Rows:     [][]any{c.returned},
				},
				pgxtest.Step{Contains: "SET inventory_status"},
			)
			r := &Repo{Log: zaptest.NewLogger(t)}
			if err := r.settleProduct(context.Background(), f, 7, 3, c.target); err != nil {
				t.Fatal(err)
			}
			f.Done()

			args := f.Args[0]
			if args[0].(int64) != 7 {
				t.Fatalf("product id = %v", args[0])
			}
			if args[1].(int) != c.stockDelta || args[2].(int) != c.reservedDelta {
				t.Fatalf("deltas = (%v, %v), want (%d, %d)",
					args[1], args[2], c.stockDelta, c.reservedDelta)
			}
		})
	}
}

func TestSettleProductSkipsStatusWriteWhenUnchanged(t *testing.T) {
	f := pgxtest.New(t,
		pgxtest.Step{
			Contains: "UPDATE products SET stock_qty",
			Rows:     [][]any{{4, 1, shop.InventoryAvailable}},
		},
	)
	r := &Repo{Log: zaptest.NewLogger(t)}
	if err := r.settleProduct(context.Background(), f, 7, 1, shop.OrderCancelled); err != nil {
		t.Fatal(err)
	}
	f.Done()
}
