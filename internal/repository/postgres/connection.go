package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/shopbridge/syncengine/internal/config"
)

// NewConnection creates a new PostgreSQL database connection
func NewConnection(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS connections (
		id UUID PRIMARY KEY,
		supplier_shop TEXT NOT NULL,
		retailer_shop TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_terms_type TEXT NOT NULL DEFAULT 'NET_30',
		tier TEXT NOT NULL DEFAULT 'FREE',
		api_key_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS product_mappings (
		id UUID PRIMARY KEY,
		connection_id UUID NOT NULL REFERENCES connections(id),
		supplier_product_id TEXT NOT NULL,
		retailer_product_id TEXT,
		preferences JSONB NOT NULL DEFAULT '{}',
		markup_type TEXT NOT NULL DEFAULT 'PERCENTAGE',
		markup_value DOUBLE PRECISION NOT NULL DEFAULT 0,
		conflict_policy TEXT NOT NULL DEFAULT 'SUPPLIER_WINS',
		status TEXT NOT NULL DEFAULT 'UNSYNCED',
		last_synced_at TIMESTAMPTZ,
		last_error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (connection_id, supplier_product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS variant_mappings (
		id UUID PRIMARY KEY,
		product_mapping_id UUID NOT NULL REFERENCES product_mappings(id),
		supplier_variant_id TEXT NOT NULL,
		retailer_variant_id TEXT,
		supplier_options JSONB NOT NULL DEFAULT '{}',
		retailer_options JSONB NOT NULL DEFAULT '{}',
		manually_mapped BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (product_mapping_id, supplier_variant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS forwarded_orders (
		id UUID PRIMARY KEY,
		connection_id UUID NOT NULL REFERENCES connections(id),
		retailer_order_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total DOUBLE PRECISION NOT NULL DEFAULT 0,
		idempotency_key TEXT UNIQUE,
		pushed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS forwarded_order_items (
		id UUID PRIMARY KEY,
		forwarded_order_id UUID NOT NULL REFERENCES forwarded_orders(id),
		supplier_product_id TEXT NOT NULL,
		supplier_variant_id TEXT,
		sku TEXT NOT NULL,
		title TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		quantity INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS metafield_definitions (
		id UUID PRIMARY KEY,
		shop TEXT NOT NULL,
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		field_type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (shop, namespace, key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_mappings_connection ON product_mappings(connection_id)`,
	`CREATE INDEX IF NOT EXISTS idx_forwarded_orders_connection ON forwarded_orders(connection_id)`,
}

// RunMigrations applies the embedded schema. Statements are idempotent
// so re-running on startup is safe.
func RunMigrations(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
