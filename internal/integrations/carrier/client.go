package carrier

import (
	"context"
	"strings"

	"github.com/parcelops/shippulse/internal/models"
)

// Client is one carrier's tracking lookup. Implementations wrap every
// internal failure (HTTP error, parse error, missing field) into the
// returned error; callers treat any error as "no snapshot" and fall
// back or give up, they never propagate it to the user.
type Client interface {
	Track(ctx context.Context, awb string) (*models.TrackingSnapshot, error)
}

// StatusType maps a raw carrier status to a normalized status type by
// case-insensitive substring match. Priority order matters: delivered
// beats return beats out-for-delivery.
func StatusType(raw string) string {
	s := strings.ToUpper(raw)
	switch {
	case strings.Contains(s, "DELIVERED"):
		return models.StatusTypeDelivered
	case strings.Contains(s, "RTO"), strings.Contains(s, "RETURN"):
		return models.StatusTypeReturnToOrigin
	case strings.Contains(s, "OUT FOR"):
		return models.StatusTypeOutForDelivery
	default:
		return models.StatusTypeUnknown
	}
}
