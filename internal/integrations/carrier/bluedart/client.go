package bluedart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/parcelops/shippulse/internal/integrations/carrier"
	"github.com/parcelops/shippulse/internal/models"
	"github.com/pkg/errors"
)

// TokenSource yields a valid API JWT (see internal/auth/credentials).
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
		baseURL = "https://apigateway.bluedart.com"
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
// provider. Blue Dart JWTs are valid for roughly a day.
func NewLoginFetcher(baseURL, licenseKey, loginID string) func(ctx context.Context) (string, error) {
	if baseURL == "" {
		baseURL = "https://apigateway.bluedart.com"
	}
	httpc := &http.Client{Timeout: 8 * time.Second}
	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/in/transportation/token/v1/login", nil)
		if err != nil {
			return "", errors.Wrap(err, "new login request")
		}
		req.Header.Set("ClientID", licenseKey)
		req.Header.Set("clientSecret", loginID)

		resp, err := httpc.Do(req)
		if err != nil {
			return "", errors.Wrap(err, "do login request")
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			return "", fmt.Errorf("bluedart login http %d", resp.StatusCode)
		}

		var r struct {
			JWTToken string `json:"JWTToken"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return "", errors.Wrap(err, "decode login")
		}
		if r.JWTToken == "" {
			return "", errors.New("bluedart login returned no token")
		}
		return r.JWTToken, nil
	}
}

type trackResp struct {
	ShipmentData struct {
		Shipment []struct {
			WaybillNo  string `json:"WaybillNo"`
			Status     string `json:"Status"`
			StatusType string `json:"StatusType"`
			Scans      struct {
				ScanDetail []struct {
					Scan            string `json:"Scan"`
					ScanDate        string `json:"ScanDate"`
					ScanTime        string `json:"ScanTime"`
					ScannedLocation string `json:"ScannedLocation"`
				} `json:"ScanDetail"`
			} `json:"Scans"`
		} `json:"Shipment"`
	} `json:"ShipmentData"`
}

func (c *Client) Track(ctx context.Context, awb string) (*models.TrackingSnapshot, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "bluedart token")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = "/in/transportation/tracking/v1/shipment"

	q := u.Query()
	q.Set("handheldflag", "true")
	q.Set("scans", "true")
	q.Set("numbers", awb)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("JWTToken", token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("bluedart http %d", resp.StatusCode)
	}

	// The gateway answers error pages in HTML with a 200; a decode
	// failure here covers those too.
	var r trackResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if len(r.ShipmentData.Shipment) == 0 {
		return nil, errors.New("bluedart: no shipment in response")
	}

	sh := r.ShipmentData.Shipment[0]
	if sh.Status == "" {
		return nil, errors.New("bluedart: missing status")
	}

	snap := &models.TrackingSnapshot{
		Source:    models.CourierBlueDart,
		Status:    sh.Status,
		Delivered: sh.StatusType == models.StatusTypeDelivered || carrier.StatusType(sh.Status) == models.StatusTypeDelivered,
	}

	for _, sc := range sh.Scans.ScanDetail {
		snap.Scans = append(snap.Scans, models.ScanEvent{
			Date:        parseScanTime(sc.ScanDate, sc.ScanTime),
			Location:    sc.ScannedLocation,
			Description: sc.Scan,
		})
	}

	if isNonDelivery(sh.Status) && len(snap.Scans) > 0 {
		reason := snap.Scans[len(snap.Scans)-1].Description
		if reason != "" {
			snap.NDRReason = &reason
		}
	}

	return snap, nil
}

// parseScanTime combines Blue Dart's "02-Jan-2006" + "15:04" pair.
// IST is assumed when the pair parses, now otherwise.
func parseScanTime(date, clock string) time.Time {
	ist := time.FixedZone("IST", 5*3600+1800)
	if t, err := time.ParseInLocation("02-Jan-2006 15:04", date+" "+clock, ist); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("02-Jan-2006", date, ist); err == nil {
		return t
	}
	return time.Now().UTC()
}

func isNonDelivery(status string) bool {
	s := strings.ToUpper(status)
	return strings.Contains(s, "NDR") || strings.Contains(s, "FAILED") || strings.Contains(s, "UNDELIVERED")
}
