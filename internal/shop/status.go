package shop

type InventoryStatus string

const (
	InventoryAvailable InventoryStatus = "AVAILABLE"
	InventoryReserved  InventoryStatus = "RESERVED"
	InventorySoldOut   InventoryStatus = "SOLD_OUT"
)

// InventoryStatusFor derives the display status from the counters. The stored
// column is never authoritative; every counter mutation recomputes this.
func InventoryStatusFor(stockQty, reservedQty int) InventoryStatus {
	switch {
	case stockQty <= 0:
		return InventorySoldOut
	case reservedQty >= stockQty:
		return InventoryReserved
	default:
		return InventoryAvailable
	}
}

// CanReserve reports whether delta more units may be claimed without
// oversell. Used both before and after the counter increment: the pre-check
// and the mutation are not the same instant under concurrent writers.
func CanReserve(stockQty, reservedQty, delta int) bool {
	return delta > 0 && stockQty-reservedQty >= delta
}

type CartStatus string

const (
	CartActive     CartStatus = "ACTIVE"
	CartCheckedOut CartStatus = "CHECKED_OUT"
	CartExpired    CartStatus = "EXPIRED"
)

type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderPaid           OrderStatus = "PAID"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderExpired        OrderStatus = "EXPIRED"
)

// PENDING_PAYMENT is the only non-terminal order state.
var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPendingPayment: {OrderPaid: true, OrderCancelled: true, OrderExpired: true},
	OrderPaid:           {},
	OrderCancelled:      {},
	OrderExpired:        {},
}

func CanTransition(from, to OrderStatus) bool {
	return orderNext[from][to]
}
