package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/parcelops/shippulse/internal/integrations/carrier"
	"github.com/parcelops/shippulse/internal/models"
	"github.com/pkg/errors"
)

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	baseURL string
	tokens  TokenSource
	httpc   *http.Client
}

func New(baseURL string, tokens TokenSource) *Client {
	if baseURL == "" {
		baseURL = "https://apiv2.shiprocket.in"
	}
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpc: &http.Client{
			Timeout: 8 * time.Second,
		},
	}
}

// NewLoginFetcher returns the login call used by the credential
// provider. Shiprocket tokens live ~10 days; we refresh after 7.
func NewLoginFetcher(baseURL, email, password string) func(ctx context.Context) (string, error) {
	if baseURL == "" {
		baseURL = "https://apiv2.shiprocket.in"
	}
	httpc := &http.Client{Timeout: 8 * time.Second}
	return func(ctx context.Context) (string, error) {
		body, err := json.Marshal(map[string]string{"email": email, "password": password})
		if err != nil {
			return "", errors.Wrap(err, "marshal login")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/external/auth/login", bytes.NewReader(body))
		if err != nil {
			return "", errors.Wrap(err, "new login request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpc.Do(req)
		if err != nil {
			return "", errors.Wrap(err, "do login request")
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			return "", fmt.Errorf("shiprocket login http %d", resp.StatusCode)
		}

		var r struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return "", errors.Wrap(err, "decode login")
		}
		if r.Token == "" {
			return "", errors.New("shiprocket login returned no token")
		}
		return r.Token, nil
	}
}

type trackResp struct {
	TrackingData struct {
		TrackStatus   int `json:"track_status"`
		ShipmentTrack []struct {
			CurrentStatus string `json:"current_status"`
			CourierName   string `json:"courier_name"`
		} `json:"shipment_track"`
		ShipmentTrackActivities []struct {
			Date     string `json:"date"`
			Status   string `json:"status"`
			Activity string `json:"activity"`
			Location string `json:"location"`
		} `json:"shipment_track_activities"`
	} `json:"tracking_data"`
}

func (c *Client) Track(ctx context.Context, awb string) (*models.TrackingSnapshot, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "shiprocket token")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/external/courier/track/awb/" + awb

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("shiprocket http %d", resp.StatusCode)
	}

	var r trackResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if r.TrackingData.TrackStatus == 0 || len(r.TrackingData.ShipmentTrack) == 0 {
		return nil, errors.New("shiprocket: no tracking data")
	}

	track := r.TrackingData.ShipmentTrack[0]
	if track.CurrentStatus == "" {
		return nil, errors.New("shiprocket: missing status")
	}

	snap := &models.TrackingSnapshot{
		Source:    models.CourierShiprocket,
		Status:    track.CurrentStatus,
		Delivered: carrier.StatusType(track.CurrentStatus) == models.StatusTypeDelivered,
	}
	if track.CourierName != "" {
		name := track.CourierName
		snap.ActualCourier = &name
	}

	for _, a := range r.TrackingData.ShipmentTrackActivities {
		snap.Scans = append(snap.Scans, models.ScanEvent{
			Date:        parseActivityTime(a.Date),
			Location:    a.Location,
			Description: a.Activity,
		})
	}

	if isNonDelivery(track.CurrentStatus) && len(snap.Scans) > 0 {
		reason := snap.Scans[0].Description // activities arrive newest first
		if reason != "" {
			snap.NDRReason = &reason
		}
	}

	return snap, nil
}

func parseActivityTime(s string) time.Time {
	ist := time.FixedZone("IST", 5*3600+1800)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, ist); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func isNonDelivery(status string) bool {
	st := carrier.StatusType(status)
	return st != models.StatusTypeDelivered && st != models.StatusTypeOutForDelivery &&
		(containsFold(status, "NDR") || containsFold(status, "FAILED") || containsFold(status, "UNDELIVERED"))
}

func containsFold(s, sub string) bool {
	return bytes.Contains(bytes.ToUpper([]byte(s)), bytes.ToUpper([]byte(sub)))
}
