// Package elevation looks up ground elevation for a coordinate from an
// opentopodata-compatible HTTP API.
package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors for elevation lookups.
var (
	ErrUnavailable = errors.New("elevation service unavailable")
	ErrTimeout     = errors.New("elevation lookup timeout")
	ErrNoResult    = errors.New("elevation service returned no result")
)

// Client is the interface for looking up elevations.
type Client interface {
	Elevation(ctx context.Context, lat, lon float64) (float64, error)
}

// HTTPClient implements Client against GET {baseURL}?locations=lat,lon.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new elevation HTTP client. baseURL includes the
// dataset path, e.g. https://api.opentopodata.org/v1/ned10m.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Elevation(ctx context.Context, lat, lon float64) (float64, error) {
	params := url.Values{
		"locations": {strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	u := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding elevation response: %w", err)
	}
	if len(body.Results) == 0 || body.Results[0].Elevation == nil {
		return 0, ErrNoResult
	}

	return *body.Results[0].Elevation, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

type lookupResponse struct {
	Status  string         `json:"status"`
	Results []lookupResult `json:"results"`
}

type lookupResult struct {
	Elevation *float64 `json:"elevation"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
