package pgship

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/parcelops/shippulse/internal/models"
)

// ShipmentUpdate is the single conditional write applied per poll.
type ShipmentUpdate struct {
	LastKnownStatus string
	Courier         *string
	DeliveredAt     *time.Time
	NextCheckAt     time.Time
	OpsFlag         *string
	NDRReason       *string
	LastCheckedAt   time.Time
}

const shipmentColumns = `
  awb, order_id, courier_source, courier, last_known_status,
  delivered_at, next_check_at, ops_flag, ndr_reason,
  last_checked_at, created_at, updated_at`

// CreateShipment inserts the shipment row; a duplicate AWB is a no-op
// and reports inserted=false. Fulfillment webhooks may be redelivered,
// the first event wins.
func (s *Storage) CreateShipment(ctx context.Context, sh models.Shipment) (bool, error) {
	now := time.Now().UTC()
	createdAt := sh.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	nextCheckAt := sh.NextCheckAt
	if nextCheckAt.IsZero() {
		nextCheckAt = now
	}

	tag, err := s.db.Exec(ctx, `
INSERT INTO shipments (
  awb, order_id, courier_source, last_known_status, next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (awb) DO NOTHING
`, sh.AWB, sh.OrderID, sh.CourierSource, sh.LastKnownStatus, nextCheckAt.UTC(), createdAt.UTC(), now)
	if err != nil {
		return false, errors.Wrap(err, "insert shipment")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Storage) GetShipment(ctx context.Context, awb string) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `SELECT`+shipmentColumns+` FROM shipments WHERE awb = $1`, awb)
	sh, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

// DueShipments returns up to limit shipments whose next check time has
// passed, oldest due first.
func (s *Storage) DueShipments(ctx context.Context, now time.Time, limit int) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE next_check_at <= $1
ORDER BY next_check_at ASC
LIMIT $2
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due shipments")
	}
	defer rows.Close()

	var out []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan due shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// LatestShipmentForOrder picks the most recent shipment of an order
// (COD reconciliation tracks that one).
func (s *Storage) LatestShipmentForOrder(ctx context.Context, orderID int64) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE order_id = $1
ORDER BY created_at DESC
LIMIT 1
`, orderID)
	sh, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment for order")
	}
	return sh, nil
}

// ApplyShipmentUpdate locks the row, lets the caller derive the update
// from the current state, and writes it — all in one transaction, so
// concurrent polls of the same AWB never interleave partial writes.
func (s *Storage) ApplyShipmentUpdate(ctx context.Context, awb string, apply func(current models.Shipment) (ShipmentUpdate, error)) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT`+shipmentColumns+` FROM shipments WHERE awb = $1 FOR UPDATE`, awb)
	current, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrShipmentNotFound
	}
	if err != nil {
		return errors.Wrap(err, "select shipment for update")
	}

	upd, err := apply(*current)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
UPDATE shipments
SET
  last_known_status = $2,
  courier = $3,
  delivered_at = $4,
  next_check_at = $5,
  ops_flag = $6,
  ndr_reason = $7,
  last_checked_at = $8,
  updated_at = now()
WHERE awb = $1
`, awb, upd.LastKnownStatus, upd.Courier, upd.DeliveredAt, upd.NextCheckAt.UTC(),
		upd.OpsFlag, upd.NDRReason, upd.LastCheckedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "update shipment")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

type singleRowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row singleRowScanner) (*models.Shipment, error) {
	var sh models.Shipment
	if err := row.Scan(
		&sh.AWB, &sh.OrderID, &sh.CourierSource, &sh.Courier, &sh.LastKnownStatus,
		&sh.DeliveredAt, &sh.NextCheckAt, &sh.OpsFlag, &sh.NDRReason,
		&sh.LastCheckedAt, &sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &sh, nil
}
