package shiprocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

type serviceabilityResp struct {
	Data struct {
		AvailableCourierCompanies []struct {
			CourierName string `json:"courier_name"`
			ETD         string `json:"etd"`
		} `json:"available_courier_companies"`
	} `json:"data"`
}

// EstimateDelivery asks the serviceability API which couriers cover
// the lane and returns the earliest quoted delivery date.
func (c *Client) EstimateDelivery(ctx context.Context, pickupPincode, deliveryPincode string) (time.Time, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "shiprocket token")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/external/courier/serviceability/"

	q := u.Query()
	q.Set("pickup_postcode", pickupPincode)
	q.Set("delivery_postcode", deliveryPincode)
	q.Set("cod", "0")
	q.Set("weight", "0.5")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return time.Time{}, fmt.Errorf("shiprocket serviceability http %d", resp.StatusCode)
	}

	var r serviceabilityResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return time.Time{}, errors.Wrap(err, "decode")
	}
	if len(r.Data.AvailableCourierCompanies) == 0 {
		return time.Time{}, errors.New("shiprocket: lane not serviceable")
	}

	var earliest time.Time
	for _, cc := range r.Data.AvailableCourierCompanies {
		t, ok := parseETD(cc.ETD)
		if !ok {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if earliest.IsZero() {
		return time.Time{}, errors.New("shiprocket: no parseable etd")
	}
	return earliest, nil
}

func parseETD(s string) (time.Time, bool) {
	ist := time.FixedZone("IST", 5*3600+1800)
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", "Jan 02, 2006"} {
		if t, err := time.ParseInLocation(layout, s, ist); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
