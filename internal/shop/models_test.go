package shop

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewCartViewTotals(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, Name: "Whey Protein 1kg", Price: decimal.RequireFromString("39.90"), Quantity: 3},
		{ProductID: 2, Name: "Shaker Bottle 700ml", Price: decimal.RequireFromString("9.90"), Quantity: 1},
	}
	v := NewCartView(CartActive, lines)

	if v.TotalQty != 4 {
		t.Errorf("TotalQty = %d, want 4", v.TotalQty)
	}
	if want := decimal.RequireFromString("129.60"); !v.Subtotal.Equal(want) {
		t.Errorf("Subtotal = %s, want %s", v.Subtotal, want)
	}
	if want := decimal.RequireFromString("119.70"); !v.Items[0].LineTotal.Equal(want) {
		t.Errorf("line total = %s, want %s", v.Items[0].LineTotal, want)
	}
}

func TestNewCartViewEmpty(t *testing.T) {
	v := NewCartView(CartActive, nil)
	if v.TotalQty != 0 || !v.Subtotal.Equal(decimal.Zero) {
		t.Errorf("empty view totals = %d / %s", v.TotalQty, v.Subtotal)
	}
}

func TestFallbackProductsAreReadOnlySafe(t *testing.T) {
	for _, p := range FallbackProducts() {
		if p.ReservedQty != 0 {
			t.Errorf("fallback product %s carries reservation state", p.Slug)
		}
		if !p.IsActive {
			t.Errorf("fallback product %s is inactive", p.Slug)
		}
		if p.InventoryStatus != InventoryStatusFor(p.StockQty, p.ReservedQty) {
			t.Errorf("fallback product %s has stale inventory status", p.Slug)
		}
	}
}
