package tracking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/parcelops/shippulse/internal/broker/messages"
	"github.com/parcelops/shippulse/internal/models"
	"github.com/parcelops/shippulse/internal/services/opsrules"
	"github.com/parcelops/shippulse/internal/storage/pgship"
)

type Repository interface {
	ApplyShipmentUpdate(ctx context.Context, awb string, apply func(current models.Shipment) (pgship.ShipmentUpdate, error)) error
	GetShipment(ctx context.Context, awb string) (*models.Shipment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Service folds fresh tracking snapshots into shipment rows. It owns
// the classify-then-write step; the row lock lives in the repository.
type Service struct {
	repo     Repository
	rules    *opsrules.Classifier
	producer Producer
	topic    string
	now      func() time.Time
}

func New(repo Repository, rules *opsrules.Classifier, producer Producer, topic string) *Service {
	return &Service{
		repo:     repo,
		rules:    rules,
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PersistTracking applies one snapshot to one shipment. An unknown AWB
// is a logged no-op: the row must pre-exist from webhook ingest.
// Re-applying the same snapshot converges to the same row.
func (s *Service) PersistTracking(ctx context.Context, awb string, snap *models.TrackingSnapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}

	var flagged *messages.ShipmentFlagged

	err := s.repo.ApplyShipmentUpdate(ctx, awb, func(current models.Shipment) (pgship.ShipmentUpdate, error) {
		now := s.now()
		flag, nextCheckAt := s.rules.Classify(current, snap.Status, now)

		upd := pgship.ShipmentUpdate{
			LastKnownStatus: snap.Status,
			Courier:         current.Courier,
			DeliveredAt:     current.DeliveredAt,
			NextCheckAt:     nextCheckAt,
			OpsFlag:         flag,
			NDRReason:       current.NDRReason,
			LastCheckedAt:   now,
		}
		if snap.ActualCourier != nil && *snap.ActualCourier != "" {
			upd.Courier = snap.ActualCourier
		}
		if snap.Delivered && current.DeliveredAt == nil {
			deliveredAt := now
			upd.DeliveredAt = &deliveredAt
		}
		if snap.NDRReason != nil && *snap.NDRReason != "" {
			upd.NDRReason = snap.NDRReason
		}

		if flag != nil {
			flagged = &messages.ShipmentFlagged{
				AWB:       awb,
				OrderID:   current.OrderID,
				Flag:      *flag,
				Status:    snap.Status,
				NDRReason: upd.NDRReason,
				FlaggedAt: now,
			}
		}
		return upd, nil
	})
	if errors.Is(err, pgship.ErrShipmentNotFound) {
		slog.Warn("tracking for unknown awb, skipping", "awb", awb, "source", snap.Source)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "apply shipment update")
	}

	// Flag events are best-effort: a broker outage must not fail the
	// poll that already persisted.
	if flagged != nil && s.producer != nil && s.topic != "" {
		b, err := json.Marshal(flagged)
		if err == nil {
			err = s.producer.Publish(ctx, s.topic, []byte(awb), b)
		}
		if err != nil {
			slog.Error("publish shipment flagged", "awb", awb, "error", err.Error())
		}
	}
	return nil
}

// Shipment exposes the stored row (track endpoint).
func (s *Service) Shipment(ctx context.Context, awb string) (*models.Shipment, error) {
	return s.repo.GetShipment(ctx, awb)
}
