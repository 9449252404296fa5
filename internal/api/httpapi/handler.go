package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/parcelops/shippulse/internal/metrics"
	"github.com/parcelops/shippulse/internal/models"
	"github.com/parcelops/shippulse/internal/services/edd"
	"github.com/parcelops/shippulse/internal/services/ingest"
	"github.com/parcelops/shippulse/internal/services/sweep"
)

type EDDService interface {
	Estimate(ctx context.Context, pincode string) edd.Estimate
}

type TrackingService interface {
	PersistTracking(ctx context.Context, awb string, snap *models.TrackingSnapshot) error
	Shipment(ctx context.Context, awb string) (*models.Shipment, error)
}

type SweepService interface {
	TrackAny(ctx context.Context, awb string) *models.TrackingSnapshot
	RunDue(ctx context.Context, maxBatch int) (int, error)
	ReconcileCOD(ctx context.Context) (*sweep.CODReport, error)
	Stats() sweep.Stats
}

type IngestService interface {
	IngestOrder(ctx context.Context, body []byte, signature string) error
	IngestFulfillment(ctx context.Context, body []byte, signature string) error
}

type OrdersReader interface {
	RecentOrders(ctx context.Context, since time.Time, limit int) ([]*models.Order, error)
}

// webhookTimeout bounds the async verify+persist that runs after the
// 200 has already been sent to Shopify.
const webhookTimeout = 30 * time.Second

type Handler struct {
	edd      EDDService
	tracking TrackingService
	sweeper  SweepService
	ingest   IngestService
	orders   OrdersReader

	// ingestWait, when set, is signalled after each async webhook
	// ingest completes (tests).
	ingestWait func()
}

func NewHandler(eddSvc EDDService, tracking TrackingService, sweeper SweepService, ing IngestService, orders OrdersReader) *Handler {
	return &Handler{
		edd:      eddSvc,
		tracking: tracking,
		sweeper:  sweeper,
		ingest:   ing,
		orders:   orders,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/edd", h.handleEDD)
	r.Get("/track", h.handleTrack)
	r.Post("/track", h.handleTrack)

	r.Post("/webhooks/orders_paid", h.handleWebhook("orders_paid", func(ctx context.Context, body []byte, sig string) error {
		return h.ingest.IngestOrder(ctx, body, sig)
	}))
	r.Post("/webhooks/fulfillments_create", h.handleWebhook("fulfillments_create", func(ctx context.Context, body []byte, sig string) error {
		return h.ingest.IngestFulfillment(ctx, body, sig)
	}))

	r.Post("/_cron/track/run", h.handleCronRun)
	r.Get("/reconciliation/cod", h.handleReconcileCOD)
	r.Get("/ops/orders", h.handleRecentOrders)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.sweeper.Stats())
	})
}

type eddRequest struct {
	Pincode string `json:"pincode"`
}

func (h *Handler) handleEDD(w http.ResponseWriter, r *http.Request) {
	var req eddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	writeJSON(w, http.StatusOK, h.edd.Estimate(r.Context(), req.Pincode))
}

// handleTrack does a live carrier lookup. If the AWB is already
// registered the fresh snapshot is also folded into its row.
func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	awb := r.URL.Query().Get("awb")
	if awb == "" && r.Method == http.MethodPost {
		var req struct {
			AWB string `json:"awb"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			awb = req.AWB
		}
	}
	if awb == "" {
		writeError(w, http.StatusBadRequest, "awb is required")
		return
	}

	snap := h.sweeper.TrackAny(r.Context(), awb)
	if snap == nil {
		writeError(w, http.StatusNotFound, "unable to track awb")
		return
	}
	if err := h.tracking.PersistTracking(r.Context(), awb, snap); err != nil {
		slog.Error("persist tracked snapshot", "awb", awb, "error", err.Error())
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleWebhook acks Shopify before doing any work: verification and
// persistence run in the background and only ever log.
func (h *Handler) handleWebhook(topic string, process func(ctx context.Context, body []byte, sig string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(r)
		if err != nil {
			metrics.WebhookEvents.WithLabelValues(topic, "read_error").Inc()
			writeError(w, http.StatusBadRequest, "cannot read body")
			return
		}
		sig := r.Header.Get("X-Shopify-Hmac-Sha256")

		writeJSON(w, http.StatusOK, map[string]bool{"received": true})

		go func() {
			defer func() {
				if h.ingestWait != nil {
					h.ingestWait()
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
			defer cancel()
			if err := process(ctx, body, sig); err != nil {
				result := "error"
				if errors.Is(err, ingest.ErrBadSignature) {
					result = "bad_signature"
				}
				metrics.WebhookEvents.WithLabelValues(topic, result).Inc()
				slog.Error("webhook ingest", "topic", topic, "error", err.Error())
				return
			}
			metrics.WebhookEvents.WithLabelValues(topic, "ok").Inc()
		}()
	}
}

func (h *Handler) handleCronRun(w http.ResponseWriter, r *http.Request) {
	processed, err := h.sweeper.RunDue(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "processed": processed})
}

func (h *Handler) handleReconcileCOD(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.ReconcileCOD(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleRecentOrders(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().Add(-30 * 24 * time.Hour)
	orders, err := h.orders.RecentOrders(r.Context(), since, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(orders), "orders": orders})
}
