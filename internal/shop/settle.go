package shop

// SettlementDeltas returns the product counter changes for settling qty
// units into target. Paid converts the reservation into a sale: stock and
// reserved drop together, in the same mutation. Cancelled and Expired only
// release the claim: reserved drops, stock stays untouched because nothing
// was sold. Every settlement site must apply these deltas, never its own.
func SettlementDeltas(target OrderStatus, qty int) (stockDelta, reservedDelta int) {
	if target == OrderPaid {
		return -qty, -qty
	}
	return 0, -qty
}
