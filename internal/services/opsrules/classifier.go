package opsrules

import (
	"strings"
	"time"

	"github.com/parcelops/shippulse/internal/models"
)

type Config struct {
	DeliveredDelay time.Duration // default: 365 days (effectively never)

	OutForDeliveryDelay time.Duration // default: 1 hour
	InvalidDelay        time.Duration // default: 24 hours
	DefaultDelay        time.Duration // default: 6 hours

	NDRHour int // default: 8 (next calendar day, local)

	StuckAfter time.Duration // default: 48 hours

	SLA map[string]time.Duration // courier source -> threshold
}

func DefaultConfig() Config {
	return Config{
		DeliveredDelay:      365 * 24 * time.Hour,
		OutForDeliveryDelay: 1 * time.Hour,
		InvalidDelay:        24 * time.Hour,
		DefaultDelay:        6 * time.Hour,
		NDRHour:             8,
		StuckAfter:          48 * time.Hour,
		SLA: map[string]time.Duration{
			models.CourierBlueDart:   4 * 24 * time.Hour,
			models.CourierShiprocket: 5 * 24 * time.Hour,
		},
	}
}

// Classifier decides when a shipment should be polled next and whether
// it needs an ops flag. It is pure: all time inputs are passed in.
type Classifier struct {
	cfg Config
}

func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.DeliveredDelay <= 0 {
		cfg.DeliveredDelay = def.DeliveredDelay
	}
	if cfg.OutForDeliveryDelay <= 0 {
		cfg.OutForDeliveryDelay = def.OutForDeliveryDelay
	}
	if cfg.InvalidDelay <= 0 {
		cfg.InvalidDelay = def.InvalidDelay
	}
	if cfg.DefaultDelay <= 0 {
		cfg.DefaultDelay = def.DefaultDelay
	}
	if cfg.NDRHour <= 0 || cfg.NDRHour > 23 {
		cfg.NDRHour = def.NDRHour
	}
	if cfg.StuckAfter <= 0 {
		cfg.StuckAfter = def.StuckAfter
	}
	if len(cfg.SLA) == 0 {
		cfg.SLA = def.SLA
	}
	return &Classifier{cfg: cfg}
}

// NextCheckAt applies the poll schedule rule table to a fresh carrier
// status. First matching rule wins; matching is a case-insensitive
// substring check.
func (c *Classifier) NextCheckAt(now time.Time, newStatus string) time.Time {
	s := strings.ToUpper(newStatus)
	switch {
	case strings.Contains(s, "DELIVERED"):
		return now.Add(c.cfg.DeliveredDelay)
	case strings.Contains(s, "OUT FOR"):
		return now.Add(c.cfg.OutForDeliveryDelay)
	case strings.Contains(s, "NDR") || strings.Contains(s, "FAILED"):
		// Non-delivery attempts resolve in the next morning's run.
		next := now.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), c.cfg.NDRHour, 0, 0, 0, now.Location())
	case strings.Contains(s, "INVALID") || strings.Contains(s, "INCORRECT"):
		return now.Add(c.cfg.InvalidDelay)
	default:
		return now.Add(c.cfg.DefaultDelay)
	}
}

// Classify computes the ops flag and the next poll time for a shipment
// given the status just fetched from the carrier. A nil flag means the
// shipment is on track.
func (c *Classifier) Classify(sh models.Shipment, newStatus string, now time.Time) (*string, time.Time) {
	nextCheckAt := c.NextCheckAt(now, newStatus)

	delivered := sh.DeliveredAt != nil ||
		strings.Contains(strings.ToUpper(newStatus), "DELIVERED")

	slaBreach := false
	if !delivered {
		if threshold, ok := c.cfg.SLA[sh.CourierSource]; ok {
			slaBreach = now.Sub(sh.CreatedAt) > threshold
		}
	}

	stuck := sh.LastKnownStatus != "" &&
		sh.LastKnownStatus == newStatus &&
		sh.LastCheckedAt != nil &&
		now.Sub(*sh.LastCheckedAt) > c.cfg.StuckAfter

	var flag *string
	switch {
	case slaBreach && stuck:
		flag = ptr(models.OpsFlagEscalate)
	case slaBreach:
		flag = ptr(models.OpsFlagSLABreach)
	case stuck:
		flag = ptr(models.OpsFlagStuck)
	}
	return flag, nextCheckAt
}

func ptr(s string) *string { return &s }
