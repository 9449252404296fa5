package pgship

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGINT PRIMARY KEY,
  order_number BIGINT NOT NULL,
  financial_status TEXT NOT NULL DEFAULT '',
  fulfillment_status TEXT NOT NULL DEFAULT '',
  total_price NUMERIC(12,2) NOT NULL DEFAULT 0,
  payment_gateway_names TEXT[] NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  awb TEXT PRIMARY KEY,
  order_id BIGINT NOT NULL,
  courier_source TEXT NOT NULL,
  courier TEXT NULL,
  last_known_status TEXT NOT NULL DEFAULT '',
  delivered_at TIMESTAMPTZ NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  ops_flag TEXT NULL,
  ndr_reason TEXT NULL,
  last_checked_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_next_check_at ON shipments(next_check_at)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_order_id ON shipments(order_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
