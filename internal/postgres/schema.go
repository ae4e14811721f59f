package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id               BIGSERIAL PRIMARY KEY,
		slug             TEXT NOT NULL UNIQUE,
		name             TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		image_url        TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL,
		price            NUMERIC(10,2) NOT NULL,
		stock_qty        INT NOT NULL DEFAULT 0,
		reserved_qty     INT NOT NULL DEFAULT 0,
		inventory_status TEXT NOT NULL DEFAULT 'AVAILABLE',
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT counters_non_negative CHECK (reserved_qty >= 0 AND stock_qty >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS carts (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL UNIQUE,
		status     TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id         BIGSERIAL PRIMARY KEY,
		cart_id    BIGINT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity   INT NOT NULL CHECK (quantity >= 1),
		UNIQUE (cart_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'PENDING_PAYMENT',
		subtotal   NUMERIC(10,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id         BIGSERIAL PRIMARY KEY,
		order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id),
		quantity   INT NOT NULL CHECK (quantity >= 1),
		unit_price NUMERIC(10,2) NOT NULL,
		UNIQUE (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL,
		product_id BIGINT NOT NULL REFERENCES products(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_events (
		event_id       TEXT PRIMARY KEY,
		event_type     TEXT NOT NULL,
		topic          TEXT NOT NULL,
		correlation_id TEXT NOT NULL DEFAULT '',
		occurred_at    TIMESTAMPTZ NOT NULL,
		payload        JSONB NOT NULL,
		recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_pending ON orders (created_at) WHERE status = 'PENDING_PAYMENT'`,
	`CREATE INDEX IF NOT EXISTS idx_carts_active ON carts (updated_at) WHERE status = 'ACTIVE'`,
}

// Migrate applies the schema idempotently on startup.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
