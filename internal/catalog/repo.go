// Package catalog serves the read-mostly product browse surface: listing,
// fuzzy search and slug lookup. It is the only place allowed to fall back to
// the static snapshot when the store is down - the fallback path is pure read
// and structurally incapable of touching reservation state.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/omnisoho/fitshop/internal/redisx"
	"github.com/omnisoho/fitshop/internal/shop"
)

const retryBackoff = 200 * time.Millisecond

type Repo struct {
	DB    *pgxpool.Pool
	Redis *redis.Client // optional read cache
	Log   *zap.Logger
}

// List returns one page of active products plus the total match count.
// Without a search term the page comes straight from SQL, newest first. With
// one, the whole filtered set is pulled, ranked, then windowed - pagination
// applies to the ranked order, not the storage order.
func (r *Repo) List(ctx context.Context, category *shop.Category, search string, take, skip int) ([]shop.Product, int, error) {
	search = strings.TrimSpace(search)

	if search == "" {
		var (
			items []shop.Product
			total int
		)
		fallback, err := r.retryRead("list", func() error {
			var err error
			items, total, err = r.listPage(ctx, category, take, skip)
			return err
		})
		if fallback {
			return r.fallbackList(category, search, take, skip)
		}
		if err != nil {
			return nil, 0, err
		}
		return items, total, nil
	}

	var all []shop.Product
	fallback, err := r.retryRead("search", func() error {
		var err error
		all, err = r.listAll(ctx, category)
		return err
	})
	if fallback {
		return r.fallbackList(category, search, take, skip)
	}
	if err != nil {
		return nil, 0, err
	}
	ranked := shop.RankProducts(search, all)
	return shop.Paginate(ranked, take, skip), len(ranked), nil
}

// BySlug resolves a product by its exact, case-sensitive slug.
func (r *Repo) BySlug(ctx context.Context, slug string) (shop.Product, error) {
	if p, ok := r.cachedSlug(ctx, slug); ok {
		return p, nil
	}

	var p shop.Product
	fallback, err := r.retryRead("slug", func() error {
		var err error
		p, err = r.querySlug(ctx, slug)
		return err
	})
	if fallback {
		return fallbackSlug(slug)
	}
	if err != nil {
		return shop.Product{}, err
	}

	r.cacheSlug(ctx, p)
	return p, nil
}

// retryRead runs a read once more after a short backoff when it failed with a
// connection-class error, and reports whether the caller should serve the
// fallback snapshot: only when the retry failed connection-class too. Any
// other error, first or second attempt, propagates untouched.
func (r *Repo) retryRead(op string, fn func() error) (bool, error) {
	err := fn()
	if err == nil || !storeUnavailable(err) {
		return false, err
	}
	r.Log.Warn("catalog read failed, retrying once", zap.String("op", op), zap.Error(err))
	time.Sleep(retryBackoff)
	if err = fn(); err == nil || !storeUnavailable(err) {
		return false, err
	}
	return true, err
}

const productColumns = `id, slug, name, description, image_url, category, price,
	stock_qty, reserved_qty, inventory_status, is_active, created_at, updated_at`

func (r *Repo) listPage(ctx context.Context, category *shop.Category, take, skip int) ([]shop.Product, int, error) {
	where := `is_active`
	args := []any{}
	if category != nil {
		where += ` AND category=$1`
		args = append(args, *category)
	}

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)
	rows, err := r.DB.Query(ctx, q, append(args, take, skip)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repo) listAll(ctx context.Context, category *shop.Category) ([]shop.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE is_active`
	args := []any{}
	if category != nil {
		q += ` AND category=$1`
		args = append(args, *category)
	}
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

func (r *Repo) querySlug(ctx context.Context, slug string) (shop.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE slug=$1 AND is_active`, slug)
	if err != nil {
		return shop.Product{}, err
	}
	items, err := scanProducts(rows)
	if err != nil {
		return shop.Product{}, err
	}
	if len(items) == 0 {
		return shop.Product{}, shop.ErrInvalidProduct
	}
	return items[0], nil
}

func scanProducts(rows pgx.Rows) ([]shop.Product, error) {
	defer rows.Close()
	var out []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.ImageURL, &p.Category,
			&p.Price, &p.StockQty, &p.ReservedQty, &p.InventoryStatus, &p.IsActive,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// fallbackList serves the static snapshot through the same filter, rank and
// window pipeline as the live path.
func (r *Repo) fallbackList(category *shop.Category, search string, take, skip int) ([]shop.Product, int, error) {
	r.Log.Warn("catalog store unreachable, serving fallback snapshot")
	all := shop.FallbackProducts()
	if category != nil {
		filtered := all[:0]
		for _, p := range all {
			if p.Category == *category {
				filtered = append(filtered, p)
			}
		}
		all = filtered
	}
	ranked := shop.RankProducts(search, all)
	return shop.Paginate(ranked, take, skip), len(ranked), nil
}

func fallbackSlug(slug string) (shop.Product, error) {
	for _, p := range shop.FallbackProducts() {
		if p.Slug == slug {
			return p, nil
		}
	}
	return shop.Product{}, shop.ErrInvalidProduct
}

func (r *Repo) cachedSlug(ctx context.Context, slug string) (shop.Product, bool) {
	if r.Redis == nil {
		return shop.Product{}, false
	}
	b, err := r.Redis.Get(ctx, fmt.Sprintf(redisx.KeyProductSlug, slug)).Bytes()
	if err != nil {
		return shop.Product{}, false
	}
	var p shop.Product
	if err := json.Unmarshal(b, &p); err != nil {
		return shop.Product{}, false
	}
	return p, true
}

func (r *Repo) cacheSlug(ctx context.Context, p shop.Product) {
	if r.Redis == nil {
		return
	}
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = r.Redis.Set(ctx, fmt.Sprintf(redisx.KeyProductSlug, p.Slug), b, redisx.TTLProductCache).Err()
}

// storeUnavailable classifies connection-class failures that justify the
// read-only degraded mode: unreachable server, dropped connections, missing
// schema. Business and query errors never qualify.
func storeUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception, class 57: operator intervention,
		// 42P01: undefined table (schema not yet provisioned).
		class := ""
		if len(pgErr.Code) >= 2 {
			class = pgErr.Code[:2]
		}
		return class == "08" || class == "57" || pgErr.Code == "42P01"
	}
	return pgconn.Timeout(err)
}
