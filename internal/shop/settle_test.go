package shop

import "testing"

func TestSettlementDeltas(t *testing.T) {
	cases := []struct {
		target                    OrderStatus
		qty                       int
		stockDelta, reservedDelta int
	}{
		{OrderPaid, 3, -3, -3},
		{OrderCancelled, 3, 0, -3},
		{OrderExpired, 2, 0, -2},
	}
	for _, c := range cases {
		sd, rd := SettlementDeltas(c.target, c.qty)
		if sd != c.stockDelta || rd != c.reservedDelta {
			t.Errorf("SettlementDeltas(%s, %d) = (%d, %d), want (%d, %d)",
				c.target, c.qty, sd, rd, c.stockDelta, c.reservedDelta)
		}
	}
}

func TestPayConvertsReservationIntoSale(t *testing.T) {
	stock, reserved := 5, 3
	sd, rd := SettlementDeltas(OrderPaid, 3)
	stock, reserved = stock+sd, reserved+rd

	if stock != 2 || reserved != 0 {
		t.Fatalf("after pay: stock=%d reserved=%d, want 2, 0", stock, reserved)
	}
	if reserved < 0 || reserved > stock {
		t.Fatalf("invariant violated: 0 <= %d <= %d", reserved, stock)
	}
	if got := InventoryStatusFor(stock, reserved); got != InventoryAvailable {
		t.Fatalf("status after pay = %s, want AVAILABLE", got)
	}
}

func TestCancelReleasesReservationOnly(t *testing.T) {
	stock, reserved := 5, 5
	if InventoryStatusFor(stock, reserved) != InventoryReserved {
		t.Fatal("precondition: fully reserved product")
	}

	sd, rd := SettlementDeltas(OrderCancelled, 5)
	stock, reserved = stock+sd, reserved+rd

	if stock != 5 {
		t.Fatalf("cancel changed stock to %d; nothing was sold", stock)
	}
	if reserved != 0 {
		t.Fatalf("reserved after cancel = %d, want 0", reserved)
	}
	if got := InventoryStatusFor(stock, reserved); got != InventoryAvailable {
		t.Fatalf("status after cancel = %s, want AVAILABLE", got)
	}
}

func TestReserveThenExpireRoundTrip(t *testing.T) {
	stock, reserved := 4, 1

	if !CanReserve(stock, reserved, 2) {
		t.Fatal("precondition: 2 units reservable")
	}
	reserved += 2

	sd, rd := SettlementDeltas(OrderExpired, 2)
	stock, reserved = stock+sd, reserved+rd

	if stock != 4 || reserved != 1 {
		t.Fatalf("round trip left stock=%d reserved=%d, want 4, 1", stock, reserved)
	}
}
