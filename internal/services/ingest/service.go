package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/parcelops/shippulse/internal/models"
)

var ErrBadSignature = errors.New("webhook signature mismatch")

type Repository interface {
	UpsertOrder(ctx context.Context, o models.Order) error
	CreateShipment(ctx context.Context, sh models.Shipment) (bool, error)
}

type Verifier interface {
	Verify(body []byte, signature string) bool
}

// Service turns raw Shopify webhook bodies into order and shipment
// rows. Callers ack the webhook before calling in; errors here are
// logged, never surfaced to Shopify.
type Service struct {
	repo   Repository
	verify Verifier
	now    func() time.Time
}

func New(repo Repository, verify Verifier) *Service {
	return &Service{repo: repo, verify: verify, now: time.Now}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type orderPayload struct {
	ID                  int64     `json:"id"`
	OrderNumber         int64     `json:"order_number"`
	FinancialStatus     string    `json:"financial_status"`
	FulfillmentStatus   string    `json:"fulfillment_status"`
	TotalPrice          string    `json:"total_price"`
	PaymentGatewayNames []string  `json:"payment_gateway_names"`
	CreatedAt           time.Time `json:"created_at"`
}

// IngestOrder verifies and stores an orders/paid payload.
func (s *Service) IngestOrder(ctx context.Context, body []byte, signature string) error {
	if !s.verify.Verify(body, signature) {
		return ErrBadSignature
	}

	var p orderPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return errors.Wrap(err, "decode order payload")
	}
	if p.ID == 0 {
		return errors.New("order payload missing id")
	}

	price := decimal.Zero
	if p.TotalPrice != "" {
		var err error
		price, err = decimal.NewFromString(p.TotalPrice)
		if err != nil {
			return errors.Wrap(err, "parse total_price")
		}
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	err := s.repo.UpsertOrder(ctx, models.Order{
		ID:                  p.ID,
		OrderNumber:         p.OrderNumber,
		FinancialStatus:     p.FinancialStatus,
		FulfillmentStatus:   p.FulfillmentStatus,
		TotalPrice:          price,
		PaymentGatewayNames: p.PaymentGatewayNames,
		CreatedAt:           createdAt,
	})
	if err != nil {
		return errors.Wrap(err, "upsert order")
	}
	slog.Info("order ingested", "order_id", p.ID, "financial_status", p.FinancialStatus)
	return nil
}

type fulfillmentPayload struct {
	OrderID         int64  `json:"order_id"`
	TrackingNumber  string `json:"tracking_number"`
	TrackingCompany string `json:"tracking_company"`
}

// IngestFulfillment verifies and stores a fulfillments/create payload.
// The tracking number becomes the shipment's AWB; a replayed webhook
// for a known AWB is a no-op.
func (s *Service) IngestFulfillment(ctx context.Context, body []byte, signature string) error {
	if !s.verify.Verify(body, signature) {
		return ErrBadSignature
	}

	var p fulfillmentPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return errors.Wrap(err, "decode fulfillment payload")
	}
	if p.TrackingNumber == "" {
		slog.Warn("fulfillment without tracking number, skipping", "order_id", p.OrderID)
		return nil
	}

	now := s.now().UTC()
	inserted, err := s.repo.CreateShipment(ctx, models.Shipment{
		AWB:           p.TrackingNumber,
		OrderID:       p.OrderID,
		CourierSource: inferCourier(p.TrackingCompany),
		NextCheckAt:   now,
		CreatedAt:     now,
	})
	if err != nil {
		return errors.Wrap(err, "create shipment")
	}
	if !inserted {
		slog.Info("duplicate fulfillment webhook, awb already tracked", "awb", p.TrackingNumber)
		return nil
	}
	slog.Info("shipment registered", "awb", p.TrackingNumber, "order_id", p.OrderID)
	return nil
}

// inferCourier maps Shopify's free-text tracking_company onto a
// tracking source. Anything that is not recognizably Blue Dart goes
// through the Shiprocket aggregator.
func inferCourier(company string) string {
	if strings.Contains(strings.ToLower(company), "blue") {
		return models.CourierBlueDart
	}
	return models.CourierShiprocket
}
