package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/navid-fn/tradereplay/internal/models"
)

const YahooBaseURL = "https://query1.finance.yahoo.com"

var yahooIntervals = map[models.Timeframe]string{
	models.TF1m:  "1m",
	models.TF5m:  "5m",
	models.TF15m: "15m",
	models.TF1h:  "60m",
	models.TF1d:  "1d",
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Yahoo reads the public Yahoo Finance chart endpoint.
type Yahoo struct {
	config *HTTPConfig
}

func NewYahoo(config *HTTPConfig) *Yahoo {
	return &Yahoo{config: config}
}

func (y *Yahoo) Fetch(ctx context.Context, symbol string, start, end time.Time, interval models.Timeframe) ([]models.Bar, error) {
	iv, ok := yahooIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("yahoo: %w: %s", ErrUnsupportedInterval, interval)
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", iv)
	q.Set("includePrePost", "false")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.config.BaseURL, url.PathEscape(symbol), q.Encode())

	body, err := y.config.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("yahoo: %w", err)
	}

	var resp yahooChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("yahoo: decode chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	res := resp.Chart.Result[0]
	quote := res.Indicators.Quote[0]
	bars := make([]models.Bar, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		// Yahoo pads missing minutes with nulls
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		var vol float64
		if v := at(quote.Volume, i); v != nil {
			vol = *v
		}
		t := time.Unix(ts, 0).UTC()
		if t.Before(start) || !t.Before(end) {
			continue
		}
		bars = append(bars, models.Bar{
			Timestamp: t,
			Timeframe: interval,
			Open:      *o,
			High:      *h,
			Low:       *l,
			Close:     *c,
			Volume:    vol,
		})
	}
	return bars, nil
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}
