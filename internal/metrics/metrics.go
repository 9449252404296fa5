package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shippulse_webhook_events_total",
		Help: "Inbound webhook events by topic and outcome.",
	}, []string{"topic", "result"})

	SweepProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shippulse_sweep_processed_total",
		Help: "Shipments re-polled and persisted by the sweep.",
	})

	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shippulse_sweep_errors_total",
		Help: "Per-item sweep failures (tracking or persistence).",
	})

	CarrierRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shippulse_carrier_requests_total",
		Help: "Outbound carrier tracking calls by carrier and outcome.",
	}, []string{"carrier", "result"})

	CODLeaks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shippulse_cod_leaks_total",
		Help: "COD orders found delivered but unpaid.",
	})

	SweepInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shippulse_sweep_in_flight",
		Help: "Shipments currently being re-polled.",
	})
)
