package carrier

import (
	"testing"

	"github.com/parcelops/shippulse/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStatusType(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"DELIVERED", models.StatusTypeDelivered},
		{"Shipment delivered to consignee", models.StatusTypeDelivered},
		{"dElIvErEd", models.StatusTypeDelivered},
		{"RTO initiated", models.StatusTypeReturnToOrigin},
		{"Returned to shipper", models.StatusTypeReturnToOrigin},
		{"OUT FOR DELIVERY", models.StatusTypeOutForDelivery},
		{"out for delivery - local hub", models.StatusTypeOutForDelivery},
		{"In Transit", models.StatusTypeUnknown},
		{"", models.StatusTypeUnknown},
		// Priority: delivered wins over return wins over out-for.
		{"RTO DELIVERED back to origin", models.StatusTypeDelivered},
		{"RETURN out for delivery", models.StatusTypeReturnToOrigin},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, StatusType(tc.raw), "raw %q", tc.raw)
	}
}
