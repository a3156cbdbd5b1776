package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/lease-engine/internal/models"
)

// Fetcher retrieves every published value of a series.
type Fetcher interface {
	FetchSeries(ctx context.Context, series string) ([]models.IndexPoint, error)
}

// HTTPClient reads a series from a JSON feed at {baseURL}/series/{name}.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

type seriesValue struct {
	Year    int             `json:"year"`
	Quarter int             `json:"quarter"`
	Value   decimal.Decimal `json:"value"`
}

// NewHTTPClient creates a feed client. Requests are traced through otelhttp.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// FetchSeries downloads the series. Values must be positive and quarters
// in 1..4.
func (c *HTTPClient) FetchSeries(ctx context.Context, series string) ([]models.IndexPoint, error) {
	series = strings.ToUpper(strings.TrimSpace(series))
	if series == "" {
		return nil, errors.New("series is required")
	}
	if c.baseURL == "" {
		return nil, errors.New("index source URL is not configured")
	}

	endpoint := fmt.Sprintf("%s/series/%s", c.baseURL, url.PathEscape(series))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create index request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request index series: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index API returned status %d", resp.StatusCode)
	}

	var payload []seriesValue
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode index response: %w", err)
	}

	points := make([]models.IndexPoint, 0, len(payload))
	for _, v := range payload {
		p := models.IndexPoint{Year: v.Year, Quarter: v.Quarter, Value: v.Value}
		if err := validatePoint(p); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func validatePoint(p models.IndexPoint) error {
	q := Quarter{Year: p.Year, Q: p.Quarter}
	if !q.Valid() {
		return fmt.Errorf("invalid index quarter %s", q)
	}
	if !p.Value.IsPositive() {
		return fmt.Errorf("index value for %s must be positive, got %s", q, p.Value)
	}
	if !p.Value.Equal(p.Value.Truncate(models.IndexValueScale)) {
		return fmt.Errorf("index value for %s has more than %d decimals: %s", q, models.IndexValueScale, p.Value)
	}
	if p.Value.GreaterThanOrEqual(models.IndexValueLimit) {
		return fmt.Errorf("index value for %s is too large: %s", q, p.Value)
	}
	return nil
}
