package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Client resolves an Indian pincode to its district through the public
// postal API. Lookups are best-effort enrichment: callers tolerate any
// error and proceed without a city.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.postalpincode.in"
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type pincodeResp []struct {
	Status     string `json:"Status"`
	PostOffice []struct {
		District string `json:"District"`
		State    string `json:"State"`
	} `json:"PostOffice"`
}

func (c *Client) District(ctx context.Context, pincode string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pincode/"+pincode, nil)
	if err != nil {
		return "", errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("geo http %d", resp.StatusCode)
	}

	var r pincodeResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", errors.Wrap(err, "decode")
	}
	if len(r) == 0 || r[0].Status != "Success" || len(r[0].PostOffice) == 0 {
		return "", errors.New("pincode not found")
	}
	return r[0].PostOffice[0].District, nil
}
