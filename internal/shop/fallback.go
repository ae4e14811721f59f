package shop

import "github.com/shopspring/decimal"

// FallbackProducts is a fixed read-only snapshot served when the backing
// store is unreachable. It carries zero reservation state and is never used
// by mutation paths, so browsing keeps working during an outage without any
// risk of phantom reservations.
func FallbackProducts() []Product {
	return []Product{
		fallbackProduct(9001, "whey-protein-1kg", "Whey Protein 1kg", "Fast-absorbing whey protein isolate, vanilla.", "/img/whey-protein.jpg", CategorySupplements, "39.90", 25),
		fallbackProduct(9002, "creatine-monohydrate-500g", "Creatine Monohydrate 500g", "Micronised creatine monohydrate powder.", "/img/creatine.jpg", CategorySupplements, "24.50", 40),
		fallbackProduct(9003, "bcaa-recovery-blend", "BCAA Recovery Blend", "2:1:1 branched-chain amino acids, citrus.", "/img/bcaa.jpg", CategorySupplements, "29.00", 18),
		fallbackProduct(9004, "womens-seamless-leggings", "Women's Seamless Leggings", "High-waist seamless training leggings.", "/img/leggings.jpg", CategoryWomensClothing, "54.90", 12),
		fallbackProduct(9005, "womens-racerback-tank", "Women's Racerback Tank", "Breathable mesh-back training tank.", "/img/tank.jpg", CategoryWomensClothing, "27.90", 20),
		fallbackProduct(9006, "mens-training-tee", "Men's Training Tee", "Quick-dry crew neck training tee.", "/img/tee.jpg", CategoryMensClothing, "22.90", 30),
		fallbackProduct(9007, "mens-woven-shorts", "Men's Woven Shorts", "Lightweight 7-inch woven shorts.", "/img/shorts.jpg", CategoryMensClothing, "34.90", 16),
		fallbackProduct(9008, "shaker-bottle-700ml", "Shaker Bottle 700ml", "Leak-proof shaker with mixing ball.", "/img/shaker.jpg", CategoryHome, "9.90", 60),
	}
}

func fallbackProduct(id int64, slug, name, desc, img string, cat Category, price string, stock int) Product {
	return Product{
		ID:              id,
		Slug:            slug,
		Name:            name,
		Description:     desc,
		ImageURL:        img,
		Category:        cat,
		Price:           decimal.RequireFromString(price),
		StockQty:        stock,
		ReservedQty:     0,
		InventoryStatus: InventoryStatusFor(stock, 0),
		IsActive:        true,
	}
}
