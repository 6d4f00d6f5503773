// Package testutil opens throwaway sqlite databases shaped like the Postgres
// schema for repository and service tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const schema = `
CREATE TABLE products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE product_variations (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products(id),
  name TEXT NOT NULL,
  color TEXT NOT NULL DEFAULT '',
  image_url TEXT,
  price TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE variation_sizes (
  id TEXT PRIMARY KEY,
  variation_id TEXT NOT NULL REFERENCES product_variations(id),
  size TEXT NOT NULL,
  created_at DATETIME
);
CREATE TABLE stock_units (
  id TEXT PRIMARY KEY,
  public_id TEXT NOT NULL UNIQUE,
  variation_size_id TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
  retired_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT ux_stock_units_variation_size UNIQUE (variation_size_id)
);
CREATE TABLE stock_movements (
  id TEXT PRIMARY KEY,
  stock_unit_id TEXT NOT NULL REFERENCES stock_units(id),
  kind TEXT NOT NULL CHECK (kind IN ('IN', 'OUT')),
  amount INTEGER NOT NULL,
  quantity_before INTEGER NOT NULL,
  quantity_after INTEGER NOT NULL,
  reason TEXT NOT NULL,
  created_at DATETIME
);
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  public_id TEXT NOT NULL UNIQUE,
  owner_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  payment_reference_id TEXT,
  total_amount TEXT NOT NULL,
  shipping_cost TEXT NOT NULL,
  shipping_address TEXT NOT NULL,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);
CREATE TABLE order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id),
  stock_unit_public_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  variation_name TEXT NOT NULL,
  color TEXT NOT NULL DEFAULT '',
  size TEXT NOT NULL,
  image_url TEXT,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  line_total TEXT NOT NULL,
  created_at DATETIME
);
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`

// OpenSQLite returns an isolated in-memory database with the back office schema.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:backoffice_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
