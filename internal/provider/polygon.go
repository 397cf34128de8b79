package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/navid-fn/tradereplay/internal/models"
)

const PolygonBaseURL = "https://api.polygon.io"

// maxPolygonPages bounds next_url pagination for one Fetch.
const maxPolygonPages = 50

type polygonSpan struct {
	multiplier int
	timespan   string
}

var polygonIntervals = map[models.Timeframe]polygonSpan{
	models.TF1m:  {1, "minute"},
	models.TF3m:  {3, "minute"},
	models.TF5m:  {5, "minute"},
	models.TF15m: {15, "minute"},
	models.TF1h:  {1, "hour"},
	models.TF4h:  {4, "hour"},
	models.TF1d:  {1, "day"},
}

type polygonBar struct {
	Timestamp int64   `json:"t"` // unix milliseconds
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

type polygonAggregatesResponse struct {
	Ticker       string       `json:"ticker"`
	ResultsCount int          `json:"resultsCount"`
	Results      []polygonBar `json:"results"`
	Status       string       `json:"status"`
	Error        string       `json:"error,omitempty"`
	NextURL      string       `json:"next_url,omitempty"`
}

// Polygon reads the Polygon.io aggregates endpoint.
type Polygon struct {
	config *HTTPConfig
	apiKey string
}

func NewPolygon(config *HTTPConfig, apiKey string) *Polygon {
	return &Polygon{config: config, apiKey: apiKey}
}

func (p *Polygon) Fetch(ctx context.Context, symbol string, start, end time.Time, interval models.Timeframe) ([]models.Bar, error) {
	span, ok := polygonIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("polygon: %w: %s", ErrUnsupportedInterval, interval)
	}

	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/%d/%s/%d/%d?adjusted=true&sort=asc&limit=50000",
		p.config.BaseURL, url.PathEscape(symbol), span.multiplier, span.timespan,
		start.UnixMilli(), end.UnixMilli())

	var bars []models.Bar
	for page := 0; endpoint != "" && page < maxPolygonPages; page++ {
		body, err := p.config.get(ctx, p.withKey(endpoint))
		if err != nil {
			return nil, fmt.Errorf("polygon: %w", err)
		}

		var resp polygonAggregatesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("polygon: decode aggregates: %w", err)
		}
		if resp.Status == "ERROR" {
			return nil, fmt.Errorf("polygon: %s", resp.Error)
		}

		for _, r := range resp.Results {
			t := time.UnixMilli(r.Timestamp).UTC()
			if t.Before(start) || !t.Before(end) {
				continue
			}
			bars = append(bars, models.Bar{
				Timestamp: t,
				Timeframe: interval,
				Open:      r.Open,
				High:      r.High,
				Low:       r.Low,
				Close:     r.Close,
				Volume:    r.Volume,
			})
		}
		endpoint = resp.NextURL
	}
	return bars, nil
}

func (p *Polygon) withKey(endpoint string) string {
	if p.apiKey == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "apiKey=" + url.QueryEscape(p.apiKey)
}
