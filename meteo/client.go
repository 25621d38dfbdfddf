package meteo

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.met.no/weatherapi/locationforecast/2.0"

// Client represents a client for the MET Norway Location Forecast API
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient creates a new client for the MET Norway Location Forecast API
func NewClient(userAgent string) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: 30 * time.Second}, userAgent)
}

// NewClientWithHTTPClient creates a new client with a custom HTTP client
func NewClientWithHTTPClient(httpClient *http.Client, userAgent string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		userAgent:  userAgent,
	}
}

// SetBaseURL sets the base URL for the API (useful for testing)
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// GetCompact retrieves the compact forecast for the location. The location
// is validated before any request is made.
func (c *Client) GetCompact(params QueryParams) (*METJSONForecast, error) {
	if err := ValidateLocation(params.Location); err != nil {
		return nil, err
	}
	if c.userAgent == "" {
		return nil, &ValidationError{Field: "user_agent", Message: "MET API requires an identifying User-Agent"}
	}

	reqURL, err := c.buildURL("compact", params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Operation: "GET compact", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		}
	}

	var forecast METJSONForecast
	if err := json.NewDecoder(resp.Body).Decode(&forecast); err != nil {
		return nil, fmt.Errorf("failed to decode forecast: %w", err)
	}

	return &forecast, nil
}

// buildURL constructs the API URL. MET asks clients to round coordinates to
// four decimals so responses can be cached upstream.
func (c *Client) buildURL(endpoint string, params QueryParams) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	u.Path = fmt.Sprintf("%s/%s", u.Path, endpoint)

	query := u.Query()
	query.Set("lat", formatCoordinate(params.Location.Latitude))
	query.Set("lon", formatCoordinate(params.Location.Longitude))
	if params.Location.Altitude != nil {
		query.Set("altitude", strconv.Itoa(*params.Location.Altitude))
	}

	u.RawQuery = query.Encode()
	return u.String(), nil
}

func formatCoordinate(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e4)/1e4, 'f', -1, 64)
}

// ValidateLocation validates that the location parameters are within acceptable ranges
func ValidateLocation(loc Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return &ValidationError{Field: "lat", Message: fmt.Sprintf("must be between -90 and 90, got %f", loc.Latitude)}
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return &ValidationError{Field: "lon", Message: fmt.Sprintf("must be between -180 and 180, got %f", loc.Longitude)}
	}
	if loc.Altitude != nil && *loc.Altitude < 0 {
		return &ValidationError{Field: "altitude", Message: fmt.Sprintf("must be non-negative, got %d", *loc.Altitude)}
	}
	return nil
}
