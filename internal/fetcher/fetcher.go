// Package fetcher serves bars from the Bar Store and falls back to the external
// provider on a cache miss, writing fetched and derived bars back.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/internal/aggregator"
	"github.com/navid-fn/tradereplay/internal/models"
	"github.com/navid-fn/tradereplay/internal/provider"
	"github.com/navid-fn/tradereplay/internal/storage"
)

// ErrCacheWrite wraps a failed write-back. The series returned alongside it is still usable.
var ErrCacheWrite = errors.New("cache write failed")

// Status tells where a Series came from.
type Status string

const (
	StatusCache       Status = "cache"
	StatusFetched     Status = "fetched"
	StatusAggregated  Status = "aggregated"
	StatusSubstituted Status = "substituted"
	StatusNoData      Status = "nodata"
)

// Series is the result of GetOrFetch.
type Series struct {
	Timeframe models.Timeframe
	// Base is the provider interval used on a fetch. Empty for cache hits.
	Base   models.Timeframe
	Bars   []models.Bar
	Status Status
	// Substituted is set when base bars were tagged as Timeframe without resampling.
	Substituted bool
}

// Empty reports whether the series carries no bars.
func (s Series) Empty() bool { return len(s.Bars) == 0 }

// IntervalPolicy picks the provider interval from the age of the requested range.
type IntervalPolicy struct {
	RecentDays int
	MediumDays int
	Recent     models.Timeframe
	Medium     models.Timeframe
	Old        models.Timeframe
}

// DefaultIntervalPolicy follows the provider's lookback limits: 1m for the last
// 7 days, 5m up to 60 days, 1h beyond.
func DefaultIntervalPolicy() IntervalPolicy {
	return IntervalPolicy{
		RecentDays: 7,
		MediumDays: 60,
		Recent:     models.TF1m,
		Medium:     models.TF5m,
		Old:        models.TF1h,
	}
}

// Select returns the base interval for data that is ageDays old.
func (p IntervalPolicy) Select(ageDays int) models.Timeframe {
	switch {
	case ageDays <= p.RecentDays:
		return p.Recent
	case ageDays <= p.MediumDays:
		return p.Medium
	default:
		return p.Old
	}
}

// Config configures a Fetcher.
type Config struct {
	Symbol string
	Policy IntervalPolicy
	// Now is the clock used for data age. Defaults to time.Now.
	Now func() time.Time
}

// Fetcher is the acquisition and cache orchestrator.
type Fetcher struct {
	store  storage.BarStore
	source provider.BarSource
	symbol string
	policy IntervalPolicy
	now    func() time.Time
	logger logrus.FieldLogger
}

func New(store storage.BarStore, source provider.BarSource, cfg Config, logger logrus.FieldLogger) *Fetcher {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Policy == (IntervalPolicy{}) {
		cfg.Policy = DefaultIntervalPolicy()
	}
	return &Fetcher{
		store:  store,
		source: source,
		symbol: cfg.Symbol,
		policy: cfg.Policy,
		now:    cfg.Now,
		logger: logger,
	}
}

// Range converts calendar dates into the inclusive query bounds [startDate 00:00, endDate 00:00] UTC.
func Range(startDate, endDate time.Time) (time.Time, time.Time) {
	return dayUTC(startDate), dayUTC(endDate)
}

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AgeDays is the number of whole days between now and start.
func (f *Fetcher) AgeDays(start time.Time) int {
	return int(f.now().Sub(start) / (24 * time.Hour))
}

// GetOrFetch returns bars of tf for the date range. "No data" is a Series with
// StatusNoData and a nil error. A failed write-back returns the bars together
// with an error wrapping ErrCacheWrite.
func (f *Fetcher) GetOrFetch(ctx context.Context, startDate, endDate time.Time, tf models.Timeframe, forceRefresh bool) (Series, error) {
	if !tf.Valid() {
		return Series{}, fmt.Errorf("%w: %q", aggregator.ErrUnsupportedTimeframe, tf)
	}
	start, end := Range(startDate, endDate)
	log := f.logger.WithFields(logrus.Fields{
		"timeframe": tf,
		"start":     start.Format(time.DateOnly),
		"end":       end.Format(time.DateOnly),
	})

	if !forceRefresh {
		cached, err := f.store.QueryRange(ctx, start, end, tf)
		if err != nil {
			log.WithError(err).Warn("bar store read failed, fetching from provider")
		} else if len(cached) > 0 {
			log.WithField("count", len(cached)).Debug("cache hit")
			return Series{Timeframe: tf, Bars: cached, Status: StatusCache}, nil
		}
	}

	age := f.AgeDays(start)
	base := f.policy.Select(age)
	log = log.WithFields(logrus.Fields{"interval": base, "age_days": age})
	log.Info("cache miss, fetching from provider")

	fetched, err := f.source.Fetch(ctx, f.symbol, start, end, base)
	if err != nil {
		log.WithError(err).Warn("provider fetch failed")
		return Series{Timeframe: tf, Base: base, Status: StatusNoData}, nil
	}
	baseBars := normalize(fetched, base, log)
	if len(baseBars) == 0 {
		log.Info("no data returned by provider")
		return Series{Timeframe: tf, Base: base, Status: StatusNoData}, nil
	}

	var writeErr error
	if err := f.write(ctx, baseBars, log); err != nil {
		writeErr = err
	}

	if tf == base {
		return Series{Timeframe: tf, Base: base, Bars: baseBars, Status: StatusFetched}, writeErr
	}

	if !aggregator.CanDerive(base, tf) {
		substituted := models.Retag(baseBars, tf)
		log.WithFields(logrus.Fields{
			"substituted": true,
			"count":       len(substituted),
		}).Warnf("%s cannot be derived from %s, caching %s bars as %s", tf, base, base, tf)
		if err := f.write(ctx, substituted, log); err != nil {
			writeErr = errors.Join(writeErr, err)
		}
		return Series{Timeframe: tf, Base: base, Bars: substituted, Status: StatusSubstituted, Substituted: true}, writeErr
	}

	res, err := aggregator.Aggregate(baseBars, base, tf)
	if err != nil {
		return Series{}, err
	}
	if res.Dropped > 0 {
		log.WithField("dropped", res.Dropped).Debug("discarded incomplete buckets")
	}
	if len(res.Bars) == 0 {
		log.Info("no complete buckets after aggregation")
		return Series{Timeframe: tf, Base: base, Status: StatusNoData}, writeErr
	}
	if err := f.write(ctx, res.Bars, log); err != nil {
		writeErr = errors.Join(writeErr, err)
	}
	return Series{Timeframe: tf, Base: base, Bars: res.Bars, Status: StatusAggregated}, writeErr
}

// GetOrFetchMulti runs GetOrFetch per timeframe and keeps the non-empty series.
// Cache-write failures are joined into the returned error; series are still returned.
func (f *Fetcher) GetOrFetchMulti(ctx context.Context, startDate, endDate time.Time, tfs []models.Timeframe) (map[models.Timeframe]Series, error) {
	out := make(map[models.Timeframe]Series, len(tfs))
	var writeErr error
	for _, tf := range tfs {
		s, err := f.GetOrFetch(ctx, startDate, endDate, tf, false)
		if err != nil {
			if !errors.Is(err, ErrCacheWrite) {
				return nil, err
			}
			writeErr = errors.Join(writeErr, err)
		}
		if !s.Empty() {
			out[tf] = s
		}
	}
	return out, writeErr
}

func (f *Fetcher) write(ctx context.Context, bars []models.Bar, log logrus.FieldLogger) error {
	n, err := f.store.InsertMany(ctx, bars)
	if err != nil {
		log.WithError(err).Error("failed to cache bars")
		return fmt.Errorf("%w: %s: %w", ErrCacheWrite, bars[0].Timeframe, err)
	}
	log.WithFields(logrus.Fields{
		"cached_as": bars[0].Timeframe,
		"inserted":  n,
		"skipped":   len(bars) - n,
	}).Debug("cached bars")
	return nil
}

// normalize forces UTC, retags under interval and drops bars violating the OHLCV invariant.
func normalize(bars []models.Bar, interval models.Timeframe, log logrus.FieldLogger) []models.Bar {
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		b.Timestamp = b.Timestamp.UTC()
		b.Timeframe = interval
		if err := b.Validate(); err != nil {
			log.WithError(err).Debug("dropping malformed provider bar")
			continue
		}
		out = append(out, b)
	}
	return out
}
