// Package provider fetches OHLCV bars from external market-data services.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/navid-fn/tradereplay/configs"
	"github.com/navid-fn/tradereplay/internal/models"
)

// ErrUnsupportedInterval is returned for an interval the provider cannot serve.
var ErrUnsupportedInterval = errors.New("unsupported interval")

// BarSource is an external provider of OHLCV bars.
// Fetch returns bars in [start, end) ascending with UTC timestamps, or an empty slice.
type BarSource interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, interval models.Timeframe) ([]models.Bar, error)
}

// HTTPConfig holds the settings shared by HTTP based providers.
type HTTPConfig struct {
	BaseURL        string
	RateLimiter    *rate.Limiter
	RequestTimeout time.Duration
	Client         *http.Client
}

// DefaultHTTPConfig returns a config limited to requestsPerSecond with a small burst.
func DefaultHTTPConfig(baseURL string, requestsPerSecond float64, timeout time.Duration) *HTTPConfig {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPConfig{
		BaseURL:        baseURL,
		RateLimiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 2),
		RequestTimeout: timeout,
		Client:         &http.Client{Timeout: timeout},
	}
}

// get waits for the limiter, performs a GET and returns the body of a 2xx response.
func (c *HTTPConfig) get(ctx context.Context, url string) ([]byte, error) {
	if c.RateLimiter != nil {
		if err := c.RateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; tradereplay/1.0)")
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// New builds the provider selected by cfg.Name.
func New(cfg configs.ProviderConfig) (BarSource, string, error) {
	switch cfg.Name {
	case "", "yahoo":
		return NewYahoo(DefaultHTTPConfig(YahooBaseURL, cfg.RequestsPerSecond, cfg.Timeout)), cfg.Symbol, nil
	case "polygon":
		return NewPolygon(DefaultHTTPConfig(PolygonBaseURL, cfg.RequestsPerSecond, cfg.Timeout), cfg.PolygonAPIKey), cfg.PolygonSymbol, nil
	default:
		return nil, "", fmt.Errorf("unknown data provider %q", cfg.Name)
	}
}
