package pgship

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/parcelops/shippulse/internal/models"
)

// UpsertOrder inserts the order or, on conflict, refreshes only the
// mutable status fields. Totals and identity are never overwritten.
func (s *Storage) UpsertOrder(ctx context.Context, o models.Order) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
INSERT INTO orders (
  id, order_number, financial_status, fulfillment_status,
  total_price, payment_gateway_names, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id)
DO UPDATE SET
  financial_status = EXCLUDED.financial_status,
  fulfillment_status = EXCLUDED.fulfillment_status,
  payment_gateway_names = EXCLUDED.payment_gateway_names,
  updated_at = EXCLUDED.updated_at
`, o.ID, o.OrderNumber, o.FinancialStatus, o.FulfillmentStatus,
		o.TotalPrice.StringFixed(2), o.PaymentGatewayNames, o.CreatedAt.UTC(), now)
	return errors.Wrap(err, "upsert order")
}

// CODCandidates returns orders from the window whose payment gateways
// indicate cash-on-delivery and which are still unpaid, oldest first
// (stable input ordering for the reconciliation report).
func (s *Storage) CODCandidates(ctx context.Context, since time.Time) ([]*models.Order, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_number, financial_status, fulfillment_status,
       total_price::text, payment_gateway_names, created_at, updated_at
FROM orders
WHERE created_at >= $1
  AND lower(financial_status) <> 'paid'
  AND EXISTS (
    SELECT 1 FROM unnest(payment_gateway_names) AS g(name)
    WHERE lower(g.name) LIKE '%cod%' OR lower(g.name) LIKE '%cash on delivery%'
  )
ORDER BY created_at ASC
`, since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select cod candidates")
	}
	defer rows.Close()

	return scanOrders(rows)
}

// RecentOrders returns the newest orders inside the window for the ops
// snapshot endpoint.
func (s *Storage) RecentOrders(ctx context.Context, since time.Time, limit int) ([]*models.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT id, order_number, financial_status, fulfillment_status,
       total_price::text, payment_gateway_names, created_at, updated_at
FROM orders
WHERE created_at >= $1
ORDER BY created_at DESC
LIMIT $2
`, since.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select recent orders")
	}
	defer rows.Close()

	return scanOrders(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanOrders(rows rowScanner) ([]*models.Order, error) {
	var out []*models.Order
	for rows.Next() {
		var o models.Order
		var total string
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.FinancialStatus, &o.FulfillmentStatus,
			&total, &o.PaymentGatewayNames, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		d, err := decimal.NewFromString(total)
		if err != nil {
			return nil, errors.Wrap(err, "parse total price")
		}
		o.TotalPrice = d
		out = append(out, &o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
