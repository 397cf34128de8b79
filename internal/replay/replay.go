// Package replay assembles single-day, multi-timeframe replay slices.
package replay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/fetcher"
	"github.com/navid-fn/tradereplay/internal/models"
)

// BarFetcher is the part of the orchestrator the preparer needs.
type BarFetcher interface {
	GetOrFetch(ctx context.Context, startDate, endDate time.Time, tf models.Timeframe, forceRefresh bool) (fetcher.Series, error)
}

// SliceCache caches prepared single-timeframe slices.
type SliceCache interface {
	Get(ctx context.Context, key string) (Slice, bool)
	Set(ctx context.Context, key string, s Slice)
}

// Frame is the bars of one timeframe in a replay.
type Frame struct {
	Timeframe   models.Timeframe `json:"timeframe"`
	Bars        []models.Bar     `json:"candles"`
	Substituted bool             `json:"substituted"`
}

// Replay maps each timeframe that has data to its frame.
type Replay struct {
	Date       string                     `json:"date"`
	TimeWindow string                     `json:"time_window"`
	Frames     map[models.Timeframe]Frame `json:"timeframes"`
}

// Slice is a single-timeframe replay with an optional reveal limit.
type Slice struct {
	Date        string           `json:"date"`
	TimeWindow  string           `json:"time_window"`
	Timeframe   models.Timeframe `json:"timeframe"`
	Bars        []models.Bar     `json:"candles"`
	Total       int              `json:"total_candles"`
	Substituted bool             `json:"substituted"`
}

// Config holds the context range around the replay date.
type Config struct {
	ContextDaysBefore int
	ContextDaysAfter  int
}

// Preparer composes the orchestrator and the window filter.
type Preparer struct {
	fetcher BarFetcher
	cal     *calendar.Calendar
	cfg     Config
	cache   SliceCache
	logger  logrus.FieldLogger
}

func NewPreparer(f BarFetcher, cal *calendar.Calendar, cfg Config, cache SliceCache, logger logrus.FieldLogger) *Preparer {
	return &Preparer{fetcher: f, cal: cal, cfg: cfg, cache: cache, logger: logger}
}

// ContextRange is the fetch range for a replay date.
func (p *Preparer) ContextRange(date time.Time) (time.Time, time.Time) {
	d := calendar.Day(date)
	return d.AddDate(0, 0, -p.cfg.ContextDaysBefore), d.AddDate(0, 0, p.cfg.ContextDaysAfter)
}

// Prepare builds a replay for date. The finest timeframe is narrowed to the date
// and the window; coarser timeframes keep every bar up to and including the date.
// Timeframes without data are absent from the result.
func (p *Preparer) Prepare(ctx context.Context, date time.Time, windowKey string, tfs []models.Timeframe) (Replay, error) {
	if _, err := p.cal.Window(windowKey); err != nil {
		return Replay{}, err
	}
	finest, ok := models.Finest(tfs)
	if !ok {
		return Replay{}, fmt.Errorf("%w: no timeframes requested", models.ErrUnknownTimeframe)
	}

	day := calendar.Day(date)
	out := Replay{
		Date:       day.Format(calendar.DateLayout),
		TimeWindow: windowKey,
		Frames:     make(map[models.Timeframe]Frame, len(tfs)),
	}
	for _, tf := range tfs {
		series, err := p.series(ctx, day, tf)
		if err != nil {
			return Replay{}, err
		}
		var bars []models.Bar
		if tf == finest {
			bars, err = p.windowBars(series.Bars, day, windowKey)
			if err != nil {
				return Replay{}, err
			}
		} else {
			bars = upToDate(series.Bars, day)
		}
		if len(bars) == 0 {
			continue
		}
		out.Frames[tf] = Frame{Timeframe: tf, Bars: bars, Substituted: series.Substituted}
	}
	return out, nil
}

// Slice returns the window bars of a single timeframe for date. limit > 0 keeps
// only the first limit bars; Total is always the full count.
func (p *Preparer) Slice(ctx context.Context, date time.Time, windowKey string, tf models.Timeframe, limit int) (Slice, error) {
	if _, err := p.cal.Window(windowKey); err != nil {
		return Slice{}, err
	}
	if !tf.Valid() {
		return Slice{}, fmt.Errorf("%w: %q", models.ErrUnknownTimeframe, tf)
	}
	day := calendar.Day(date)
	key := CacheKey(day, windowKey, tf)

	full, hit := Slice{}, false
	if p.cache != nil {
		full, hit = p.cache.Get(ctx, key)
	}
	if !hit {
		series, err := p.series(ctx, day, tf)
		if err != nil {
			return Slice{}, err
		}
		bars, err := p.windowBars(series.Bars, day, windowKey)
		if err != nil {
			return Slice{}, err
		}
		full = Slice{
			Date:        day.Format(calendar.DateLayout),
			TimeWindow:  windowKey,
			Timeframe:   tf,
			Bars:        bars,
			Total:       len(bars),
			Substituted: series.Substituted,
		}
		if p.cache != nil && len(bars) > 0 && !series.Substituted {
			p.cache.Set(ctx, key, full)
		}
	}
	return full.Reveal(limit), nil
}

// Reveal returns a copy holding at most limit bars. limit <= 0 keeps all.
func (s Slice) Reveal(limit int) Slice {
	if limit > 0 && limit < len(s.Bars) {
		s.Bars = slices.Clone(s.Bars[:limit])
	}
	return s
}

// CacheKey identifies a slice in the replay cache.
func CacheKey(day time.Time, windowKey string, tf models.Timeframe) string {
	return fmt.Sprintf("replay:%s:%s:%s", day.Format(calendar.DateLayout), windowKey, tf)
}

func (p *Preparer) series(ctx context.Context, day time.Time, tf models.Timeframe) (fetcher.Series, error) {
	start, end := p.ContextRange(day)
	series, err := p.fetcher.GetOrFetch(ctx, start, end, tf, false)
	if err != nil {
		if !errors.Is(err, fetcher.ErrCacheWrite) {
			return fetcher.Series{}, err
		}
		p.logger.WithError(err).WithField("timeframe", tf).Warn("serving replay bars that could not be cached")
	}
	return series, nil
}

func (p *Preparer) windowBars(bars []models.Bar, day time.Time, windowKey string) ([]models.Bar, error) {
	return p.cal.FilterToWindow(onDate(bars, day), windowKey)
}

// onDate keeps bars whose UTC calendar date is day.
func onDate(bars []models.Bar, day time.Time) []models.Bar {
	var out []models.Bar
	for _, b := range bars {
		if calendar.Day(b.Timestamp).Equal(day) {
			out = append(out, b)
		}
	}
	return out
}

// upToDate keeps bars whose UTC calendar date is on or before day.
func upToDate(bars []models.Bar, day time.Time) []models.Bar {
	var out []models.Bar
	for _, b := range bars {
		if !calendar.Day(b.Timestamp).After(day) {
			out = append(out, b)
		}
	}
	return out
}
