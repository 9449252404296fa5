package edd

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/parcelops/shippulse/internal/cache"
)

const (
	BadgeMetroExpress = "METRO_EXPRESS"
	BadgeExpress      = "EXPRESS"
)

var pincodeRe = regexp.MustCompile(`^[0-9]{6}$`)

// ETASource quotes an expected delivery date for a destination
// pincode. Both carrier EDD lookups are bound to this shape in the
// binary wiring.
type ETASource interface {
	EstimateDelivery(ctx context.Context, pincode string) (time.Time, error)
}

// ETAFunc adapts a closure (e.g. a carrier method with a fixed origin
// pincode) to ETASource.
type ETAFunc func(ctx context.Context, pincode string) (time.Time, error)

func (f ETAFunc) EstimateDelivery(ctx context.Context, pincode string) (time.Time, error) {
	return f(ctx, pincode)
}

// GeoLookup resolves a pincode to a district. Optional enrichment:
// absence never blocks an estimate.
type GeoLookup interface {
	District(ctx context.Context, pincode string) (string, error)
}

// Estimate is the customer-facing payload. A nil EDD means "cannot
// estimate" and is not an error.
type Estimate struct {
	EDD   *string `json:"edd"`
	City  *string `json:"city,omitempty"`
	Badge string  `json:"badge,omitempty"`
}

type Service struct {
	primary  ETASource
	fallback ETASource
	geo      GeoLookup

	cache    cache.BytesCache
	cacheTTL time.Duration

	metros []string
	now    func() time.Time
}

func New(primary, fallback ETASource, geo GeoLookup, c cache.BytesCache, cacheTTL time.Duration, metros []string) *Service {
	if len(metros) == 0 {
		metros = DefaultMetros()
	}
	return &Service{
		primary:  primary,
		fallback: fallback,
		geo:      geo,
		cache:    c,
		cacheTTL: cacheTTL,
		metros:   metros,
		now:      time.Now,
	}
}

func DefaultMetros() []string {
	return []string{"mumbai", "delhi", "bengaluru", "bangalore", "hyderabad", "chennai", "kolkata", "pune", "ahmedabad"}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Estimate produces the delivery-date band for a pincode. Invalid
// input and carrier outages both resolve to a null estimate.
func (s *Service) Estimate(ctx context.Context, pincode string) Estimate {
	if !pincodeRe.MatchString(pincode) {
		return Estimate{}
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, cacheKey(pincode)); err == nil && ok {
			var est Estimate
			if json.Unmarshal(b, &est) == nil {
				return est
			}
		}
	}

	var city *string
	if s.geo != nil {
		if district, err := s.geo.District(ctx, pincode); err == nil && district != "" {
			city = &district
		} else if err != nil {
			slog.Debug("geo lookup failed", "pincode", pincode, "error", err.Error())
		}
	}

	fastest, ok := s.quote(ctx, pincode)
	if !ok {
		return Estimate{City: city}
	}

	display := formatBand(fastest)
	est := Estimate{
		EDD:   &display,
		City:  city,
		Badge: s.badge(city),
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if b, err := json.Marshal(est); err == nil {
			_ = s.cache.Set(ctx, cacheKey(pincode), b, s.cacheTTL)
		}
	}
	return est
}

// quote tries Blue Dart first, Shiprocket second. First non-null wins.
func (s *Service) quote(ctx context.Context, pincode string) (time.Time, bool) {
	for _, src := range []ETASource{s.primary, s.fallback} {
		if src == nil {
			continue
		}
		eta, err := src.EstimateDelivery(ctx, pincode)
		if err != nil {
			slog.Debug("edd source failed", "pincode", pincode, "error", err.Error())
			continue
		}
		if eta.IsZero() {
			continue
		}
		// Quotes in the past (stale carrier tables) shift to tomorrow.
		if now := s.now(); eta.Before(now) {
			eta = now.AddDate(0, 0, 1)
		}
		return eta, true
	}
	return time.Time{}, false
}

func (s *Service) badge(city *string) string {
	if city != nil {
		c := strings.ToLower(*city)
		for _, m := range s.metros {
			if strings.Contains(c, strings.ToLower(m)) {
				return BadgeMetroExpress
			}
		}
	}
	return BadgeExpress
}

// formatBand renders the 2-day confidence window, e.g.
// "25-AUG-26–26-AUG-26".
func formatBand(fastest time.Time) string {
	return formatDate(fastest) + "–" + formatDate(fastest.AddDate(0, 0, 1))
}

func formatDate(t time.Time) string {
	return strings.ToUpper(t.Format("02-Jan-06"))
}

func cacheKey(pincode string) string { return "edd:" + pincode }
