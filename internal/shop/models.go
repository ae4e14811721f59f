package shop

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryHome           Category = "HOME"
	CategorySupplements    Category = "SUPPLEMENTS"
	CategoryWomensClothing Category = "WOMENS_CLOTHING"
	CategoryMensClothing   Category = "MENS_CLOTHING"
)

// Categories returns the fixed catalog categories in display order.
func Categories() []Category {
	return []Category{CategoryHome, CategorySupplements, CategoryWomensClothing, CategoryMensClothing}
}

func ValidCategory(c Category) bool {
	switch c {
	case CategoryHome, CategorySupplements, CategoryWomensClothing, CategoryMensClothing:
		return true
	}
	return false
}

type Product struct {
	ID              int64
	Slug            string
	Name            string
	Description     string
	ImageURL        string
	Category        Category
	Price           decimal.Decimal
	StockQty        int
	ReservedQty     int
	InventoryStatus InventoryStatus
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Available is the quantity still claimable by new reservations.
func (p Product) Available() int { return p.StockQty - p.ReservedQty }

type Cart struct {
	ID        int64
	UserID    int64
	Status    CartStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
}

type Order struct {
	ID        int64
	UserID    int64
	Status    OrderStatus
	Subtotal  decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type Favorite struct {
	ID        int64
	UserID    int64
	ProductID int64
	CreatedAt time.Time
}

// CartLine is one cart item joined with its product's display fields.
type CartLine struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	ImageURL  string
	Quantity  int
	LineTotal decimal.Decimal
}

// CartView is the read projection of a user's cart. Expired/ExpiredReason
// carry a one-time notice when the timeout check just reclaimed something.
type CartView struct {
	Status        CartStatus
	Items         []CartLine
	TotalQty      int
	Subtotal      decimal.Decimal
	Expired       bool
	ExpiredReason string
}

// NewCartView assembles the projection totals from joined lines.
func NewCartView(status CartStatus, lines []CartLine) CartView {
	v := CartView{Status: status, Items: lines, Subtotal: decimal.Zero}
	for i := range lines {
		lines[i].LineTotal = lines[i].Price.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
		v.TotalQty += lines[i].Quantity
		v.Subtotal = v.Subtotal.Add(lines[i].LineTotal)
	}
	return v
}

type OrderLine struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type OrderView struct {
	ID        int64
	Status    OrderStatus
	Subtotal  decimal.Decimal
	CreatedAt time.Time
	Items     []OrderLine
}
