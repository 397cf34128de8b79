// Package warmup pre-fills the bar cache for every trading day in a range.
package warmup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/fetcher"
	"github.com/navid-fn/tradereplay/internal/models"
)

// BarFetcher is the part of the orchestrator the warmer drives.
type BarFetcher interface {
	GetOrFetch(ctx context.Context, startDate, endDate time.Time, tf models.Timeframe, forceRefresh bool) (fetcher.Series, error)
}

// ContextRanger maps a trading day to the range a replay of it reads.
type ContextRanger interface {
	ContextRange(date time.Time) (time.Time, time.Time)
}

type Config struct {
	Timeframes []models.Timeframe
	Force      bool
	// Workers bounds how many dates are fetched at once.
	Workers int
}

// Summary counts per-date outcomes by fetcher status.
type Summary struct {
	Dates    int
	ByStatus map[fetcher.Status]int
	Failed   int
}

type Warmer struct {
	fetcher BarFetcher
	cal     *calendar.Calendar
	ranger  ContextRanger
	cfg     Config
	logger  logrus.FieldLogger
}

func New(f BarFetcher, cal *calendar.Calendar, ranger ContextRanger, cfg Config, logger logrus.FieldLogger) *Warmer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Warmer{fetcher: f, cal: cal, ranger: ranger, cfg: cfg, logger: logger}
}

// Run fetches every configured timeframe over the replay range of each valid
// date in [from, to]. Cache write failures are counted, not fatal.
func (w *Warmer) Run(ctx context.Context, from, to time.Time) (Summary, error) {
	dates := make(chan time.Time)
	sum := Summary{ByStatus: make(map[fetcher.Status]int)}
	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)

	for range w.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range dates {
				statuses, err := w.warmDate(ctx, d)
				mu.Lock()
				sum.Dates++
				for _, s := range statuses {
					sum.ByStatus[s]++
				}
				if err != nil {
					sum.Failed++
					errs = errors.Join(errs, err)
				}
				mu.Unlock()
			}
		}()
	}

	for d := range w.cal.EnumerateValidDates(from, to) {
		select {
		case dates <- d:
		case <-ctx.Done():
			close(dates)
			wg.Wait()
			return sum, ctx.Err()
		}
	}
	close(dates)
	wg.Wait()
	return sum, errs
}

func (w *Warmer) warmDate(ctx context.Context, date time.Time) ([]fetcher.Status, error) {
	start, end := w.ranger.ContextRange(date)
	log := w.logger.WithField("date", date.Format(calendar.DateLayout))

	var (
		statuses []fetcher.Status
		errs     error
	)
	for _, tf := range w.cfg.Timeframes {
		series, err := w.fetcher.GetOrFetch(ctx, start, end, tf, w.cfg.Force)
		if err != nil && !errors.Is(err, fetcher.ErrCacheWrite) {
			log.WithError(err).WithField("timeframe", tf).Error("warm up failed")
			errs = errors.Join(errs, err)
			continue
		}
		if err != nil {
			log.WithError(err).WithField("timeframe", tf).Warn("bars fetched but not cached")
			errs = errors.Join(errs, err)
		}
		log.WithFields(logrus.Fields{
			"timeframe": tf,
			"status":    series.Status,
			"count":     len(series.Bars),
		}).Info("warmed")
		statuses = append(statuses, series.Status)
	}
	return statuses, errs
}
