package shiprocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parcelops/shippulse/internal/models"
	"github.com/stretchr/testify/require"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) { return string(s), nil }

func TestTrack_InTransitWithActualCourier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-sr", r.Header.Get("Authorization"))
		require.Equal(t, "/v1/external/courier/track/awb/SR99", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"tracking_data": {
				"track_status": 1,
				"shipment_track": [{"current_status": "In Transit", "courier_name": "Delhivery"}],
				"shipment_track_activities": [
					{"date": "2026-08-21 09:12:00", "status": "IT", "activity": "Left origin facility", "location": "Mumbai_Hub"}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, staticTokens("tok-sr"))
	snap, err := c.Track(context.Background(), "SR99")
	require.NoError(t, err)
	require.Equal(t, models.CourierShiprocket, snap.Source)
	require.Equal(t, "In Transit", snap.Status)
	require.False(t, snap.Delivered)
	require.NotNil(t, snap.ActualCourier)
	require.Equal(t, "Delhivery", *snap.ActualCourier)
	require.Len(t, snap.Scans, 1)
	require.Equal(t, "Mumbai_Hub", snap.Scans[0].Location)
}

func TestTrack_Delivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"tracking_data": {
				"track_status": 1,
				"shipment_track": [{"current_status": "Delivered"}]
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, staticTokens("tok-sr"))
	snap, err := c.Track(context.Background(), "SR100")
	require.NoError(t, err)
	require.True(t, snap.Delivered)
}

func TestTrack_NoTrackingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracking_data": {"track_status": 0}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, staticTokens("tok-sr"))
	snap, err := c.Track(context.Background(), "SR101")
	require.Error(t, err)
	require.Nil(t, snap)
}

func TestTrack_NDRReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"tracking_data": {
				"track_status": 1,
				"shipment_track": [{"current_status": "Undelivered - NDR"}],
				"shipment_track_activities": [
					{"date": "2026-08-21 18:00:00", "status": "NDR", "activity": "Address not found", "location": "Delhi"}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, staticTokens("tok-sr"))
	snap, err := c.Track(context.Background(), "SR102")
	require.NoError(t, err)
	require.NotNil(t, snap.NDRReason)
	require.Equal(t, "Address not found", *snap.NDRReason)
}

func TestEstimateDelivery_EarliestETDWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "400099", r.URL.Query().Get("delivery_postcode"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": {"available_courier_companies": [
				{"courier_name": "Slowpost", "etd": "2026-08-28 18:00:00"},
				{"courier_name": "Fastline", "etd": "2026-08-26 18:00:00"},
				{"courier_name": "Broken", "etd": "soon"}
			]}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, staticTokens("tok-sr"))
	eta, err := c.EstimateDelivery(context.Background(), "110001", "400099")
	require.NoError(t, err)
	require.Equal(t, 26, eta.Day())
	require.Equal(t, time.August, eta.Month())
}

func TestEstimateDelivery_NotServiceable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": {"available_courier_companies": []}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, staticTokens("tok-sr"))
	_, err := c.EstimateDelivery(context.Background(), "110001", "999999")
	require.Error(t, err)
}

func TestNewLoginFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token": "sr-token"}`))
	}))
	defer srv.Close()

	fetch := NewLoginFetcher(srv.URL, "ops@example.com", "secret")
	tok, err := fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sr-token", tok)
}
