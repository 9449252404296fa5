package bluedart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// EstimateDelivery asks the transit-time API for the expected delivery
// date from the configured origin to the destination pincode.
func (c *Client) EstimateDelivery(ctx context.Context, originPincode, destPincode string) (time.Time, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "bluedart token")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/in/transportation/transit/v1/time"

	q := u.Query()
	q.Set("pPinCodeFrom", originPincode)
	q.Set("pPinCodeTo", destPincode)
	q.Set("pProductCode", "A") // air
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("JWTToken", token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return time.Time{}, fmt.Errorf("bluedart transit http %d", resp.StatusCode)
	}

	var r struct {
		ExpectedDateDelivery string `json:"ExpectedDateDelivery"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return time.Time{}, errors.Wrap(err, "decode")
	}
	if r.ExpectedDateDelivery == "" {
		return time.Time{}, errors.New("bluedart: no expected delivery date")
	}

	ist := time.FixedZone("IST", 5*3600+1800)
	t, err := time.ParseInLocation("02-Jan-2006", r.ExpectedDateDelivery, ist)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse expected date")
	}
	return t, nil
}
