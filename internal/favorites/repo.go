// Package favorites is the per-user product bookmark. It has no inventory
// effect; listing reuses the catalog ranking so a search term behaves the
// same here as in the main browse.
package favorites

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/omnisoho/fitshop/internal/shop"
)

type Repo struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

// Toggle flips the bookmark and reports whether it is now set.
func (r *Repo) Toggle(ctx context.Context, userID, productID int64) (bool, error) {
	var active bool
	err := r.DB.QueryRow(ctx, `SELECT is_active FROM products WHERE id=$1`, productID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, shop.ErrInvalidProduct
	}
	if err != nil {
		return false, err
	}
	if !active {
		return false, shop.ErrInvalidProduct
	}

	ct, err := r.DB.Exec(ctx, `
		INSERT INTO favorites (user_id, product_id) VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.DB.Exec(ctx, `
		DELETE FROM favorites WHERE user_id=$1 AND product_id=$2`, userID, productID); err != nil {
		return false, err
	}
	return false, nil
}

// List returns the user's favourited products, optionally search-ranked,
// paginated after ranking.
func (r *Repo) List(ctx context.Context, userID int64, search string, take, skip int) ([]shop.Product, int, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.slug, p.name, p.description, p.image_url, p.category, p.price,
		       p.stock_qty, p.reserved_qty, p.inventory_status, p.is_active, p.created_at, p.updated_at
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		WHERE f.user_id=$1 AND p.is_active
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var all []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.ImageURL, &p.Category,
			&p.Price, &p.StockQty, &p.ReservedQty, &p.InventoryStatus, &p.IsActive,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		all = append(all, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	ranked := shop.RankProducts(search, all)
	return shop.Paginate(ranked, take, skip), len(ranked), nil
}

// ListIDs returns just the favourited product ids for cheap client-side
// heart toggles.
func (r *Repo) ListIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.DB.Query(ctx, `SELECT product_id FROM favorites WHERE user_id=$1 ORDER BY product_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
