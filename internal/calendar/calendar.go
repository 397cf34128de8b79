// Package calendar decides which dates are practice days and narrows bars to
// the configured intraday windows in the display timezone.
package calendar

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/configs"
	"github.com/navid-fn/tradereplay/internal/models"
)

// DateLayout is the ISO calendar date format used on every boundary.
const DateLayout = "2006-01-02"

var (
	ErrUnknownWindow = errors.New("unknown time window")
	ErrInvalidDate   = errors.New("invalid date")
)

// Scenario describes one practice date in a window.
type Scenario struct {
	Date            string `json:"date"`
	DateFormatted   string `json:"date_formatted"`
	DayName         string `json:"day_name"`
	TimeWindow      string `json:"time_window"`
	TimeWindowLabel string `json:"time_window_label"`
	StartTime       string `json:"start_time,omitempty"`
	EndTime         string `json:"end_time,omitempty"`
}

// Calendar holds the static trading-day allow-list and the window table.
type Calendar struct {
	validDays map[time.Weekday]bool
	windows   map[string]models.TimeWindow
	loc       *time.Location
	logger    logrus.FieldLogger
}

func New(validDays []time.Weekday, windows map[string]models.TimeWindow, loc *time.Location, logger logrus.FieldLogger) *Calendar {
	days := make(map[time.Weekday]bool, len(validDays))
	for _, d := range validDays {
		days[d] = true
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{validDays: days, windows: windows, loc: loc, logger: logger}
}

// NewFromConfig builds a Calendar from the trading rules.
func NewFromConfig(cfg configs.TradingConfig, logger logrus.FieldLogger) (*Calendar, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load display timezone: %w", err)
	}
	return New(cfg.ValidDays, cfg.TimeWindows, loc, logger), nil
}

// ParseDate parses an ISO date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (c *Calendar) Location() *time.Location { return c.loc }

// IsValidTradingDay reports whether the weekday of date is in the allow-list.
func (c *Calendar) IsValidTradingDay(date time.Time) bool {
	return c.validDays[date.Weekday()]
}

// EnumerateValidDates yields valid trading dates from start to end inclusive, ascending.
// The sequence is lazy and may be ranged over any number of times.
func (c *Calendar) EnumerateValidDates(start, end time.Time) iter.Seq[time.Time] {
	start, end = Day(start), Day(end)
	return func(yield func(time.Time) bool) {
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if !c.IsValidTradingDay(d) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// ValidDates collects EnumerateValidDates.
func (c *Calendar) ValidDates(start, end time.Time) []time.Time {
	return slices.Collect(c.EnumerateValidDates(start, end))
}

// Window looks up a window by key.
func (c *Calendar) Window(key string) (models.TimeWindow, error) {
	w, ok := c.windows[key]
	if !ok {
		return models.TimeWindow{}, fmt.Errorf("%w: %q", ErrUnknownWindow, key)
	}
	if w.Key == "" {
		w.Key = key
	}
	return w, nil
}

// Windows returns all windows ordered by start time.
func (c *Calendar) Windows() []models.TimeWindow {
	out := make([]models.TimeWindow, 0, len(c.windows))
	for k, w := range c.windows {
		if w.Key == "" {
			w.Key = k
		}
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b models.TimeWindow) int {
		return a.Start.Seconds() - b.Start.Seconds()
	})
	return out
}

// FilterToWindow keeps bars whose local time of day is within the window, both ends inclusive.
func (c *Calendar) FilterToWindow(bars []models.Bar, key string) ([]models.Bar, error) {
	w, err := c.Window(key)
	if err != nil {
		return nil, err
	}
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if w.Contains(b.Timestamp.In(c.loc)) {
			out = append(out, b)
		}
	}
	return out, nil
}

// FilterToWindowOrAll is the degraded mode: an unknown window returns the input unchanged.
func (c *Calendar) FilterToWindowOrAll(bars []models.Bar, key string) []models.Bar {
	out, err := c.FilterToWindow(bars, key)
	if err != nil {
		c.logger.WithField("time_window", key).Warn("unknown window, returning unfiltered bars")
		return bars
	}
	return out
}

// AvailableSessions lists practice scenarios for every valid date in range.
func (c *Calendar) AvailableSessions(start, end time.Time, windowKey string) ([]Scenario, error) {
	w, err := c.Window(windowKey)
	if err != nil {
		return nil, err
	}
	var out []Scenario
	for d := range c.EnumerateValidDates(start, end) {
		out = append(out, scenario(d, w))
	}
	return out, nil
}

// ScenarioMetadata describes date in the window. ok is false when date is not a trading day.
func (c *Calendar) ScenarioMetadata(date time.Time, windowKey string) (Scenario, bool, error) {
	w, err := c.Window(windowKey)
	if err != nil {
		return Scenario{}, false, err
	}
	if !c.IsValidTradingDay(date) {
		return Scenario{}, false, nil
	}
	s := scenario(Day(date), w)
	s.StartTime = w.Start.String()
	s.EndTime = w.End.String()
	return s, true, nil
}

func scenario(d time.Time, w models.TimeWindow) Scenario {
	return Scenario{
		Date:            d.Format(DateLayout),
		DateFormatted:   d.Format("Monday, January 02, 2006"),
		DayName:         d.Weekday().String(),
		TimeWindow:      w.Key,
		TimeWindowLabel: w.Label,
	}
}
