package httpx

import (
	"time"

	"github.com/omnisoho/fitshop/internal/shop"
)

// Money travels as a decimal string with exactly two fraction digits, never
// a binary float.

type productDTO struct {
	ID              int64  `json:"id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	ImageURL        string `json:"image_url"`
	Category        string `json:"category"`
	Price           string `json:"price"`
	InventoryStatus string `json:"inventory_status"`
}

type productListDTO struct {
	Items []productDTO `json:"items"`
	Total int          `json:"total"`
}

type cartLineDTO struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	ImageURL  string `json:"image_url"`
	Qty       int    `json:"qty"`
	LineTotal string `json:"line_total"`
}

type cartDTO struct {
	Status        string        `json:"status"`
	Items         []cartLineDTO `json:"items"`
	TotalQty      int           `json:"total_qty"`
	Subtotal      string        `json:"subtotal"`
	Expired       bool          `json:"expired,omitempty"`
	ExpiredReason string        `json:"expired_reason,omitempty"`
}

type orderLineDTO struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type orderDTO struct {
	ID        int64          `json:"id"`
	Status    string         `json:"status"`
	Subtotal  string         `json:"subtotal"`
	CreatedAt time.Time      `json:"created_at"`
	Items     []orderLineDTO `json:"items"`
}

type favoriteToggleDTO struct {
	ProductID int64 `json:"product_id"`
	Favorite  bool  `json:"favorite"`
}

func toProductDTO(p shop.Product) productDTO {
	return productDTO{
		ID:              p.ID,
		Slug:            p.Slug,
		Name:            p.Name,
		Description:     p.Description,
		ImageURL:        p.ImageURL,
		Category:        string(p.Category),
		Price:           p.Price.StringFixed(2),
		InventoryStatus: string(p.InventoryStatus),
	}
}

func toProductListDTO(items []shop.Product, total int) productListDTO {
	out := productListDTO{Items: make([]productDTO, 0, len(items)), Total: total}
	for _, p := range items {
		out.Items = append(out.Items, toProductDTO(p))
	}
	return out
}

func toCartDTO(v shop.CartView) cartDTO {
	out := cartDTO{
		Status:        string(v.Status),
		Items:         make([]cartLineDTO, 0, len(v.Items)),
		TotalQty:      v.TotalQty,
		Subtotal:      v.Subtotal.StringFixed(2),
		Expired:       v.Expired,
		ExpiredReason: v.ExpiredReason,
	}
	for _, l := range v.Items {
		out.Items = append(out.Items, cartLineDTO{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.Price.StringFixed(2),
			ImageURL:  l.ImageURL,
			Qty:       l.Quantity,
			LineTotal: l.LineTotal.StringFixed(2),
		})
	}
	return out
}

func toOrderDTO(v shop.OrderView) orderDTO {
	out := orderDTO{
		ID:        v.ID,
		Status:    string(v.Status),
		Subtotal:  v.Subtotal.StringFixed(2),
		CreatedAt: v.CreatedAt,
		Items:     make([]orderLineDTO, 0, len(v.Items)),
	}
	for _, l := range v.Items {
		out.Items = append(out.Items, orderLineDTO{
			ProductID: l.ProductID,
			Name:      l.Name,
			Qty:       l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
		})
	}
	return out
}
