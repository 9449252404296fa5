package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/parcelops/shippulse/internal/models"
)

// FakeClient stands in for a carrier when no credentials are
// configured (local runs, demos). The status is deterministic per AWB
// so repeated sweeps converge.
type FakeClient struct {
	source string
}

func New(source string) *FakeClient { return &FakeClient{source: source} }

func (f *FakeClient) Track(ctx context.Context, awb string) (*models.TrackingSnapshot, error) {
	now := time.Now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(f.source))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(awb))
	v := h.Sum32()

	// 20% of AWBs are delivered, the rest keep moving.
	status := "In Transit"
	delivered := false
	if v%5 == 0 {
		status = "DELIVERED"
		delivered = true
	}

	return &models.TrackingSnapshot{
		Source:    f.source,
		Status:    status,
		Delivered: delivered,
		Scans: []models.ScanEvent{{
			Date:        now,
			Location:    "FAKE_HUB",
			Description: "fake carrier update",
		}},
	}, nil
}
