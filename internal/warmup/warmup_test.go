package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/tradereplay/configs"
	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/fetcher"
	"github.com/navid-fn/tradereplay/internal/logging"
	"github.com/navid-fn/tradereplay/internal/models"
)

type call struct {
	start, end time.Time
	tf         models.Timeframe
	force      bool
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []call
	fail  map[models.Timeframe]error
}

func (f *fakeFetcher) GetOrFetch(_ context.Context, start, end time.Time, tf models.Timeframe, force bool) (fetcher.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{start, end, tf, force})
	if err := f.fail[tf]; err != nil {
		if errors.Is(err, fetcher.ErrCacheWrite) {
			return fetcher.Series{Timeframe: tf, Status: fetcher.StatusFetched}, err
		}
		return fetcher.Series{}, err
	}
	return fetcher.Series{Timeframe: tf, Status: fetcher.StatusCache}, nil
}

type dayRanger struct{}

func (dayRanger) ContextRange(d time.Time) (time.Time, time.Time) {
	return d.AddDate(0, 0, -1), d.AddDate(0, 0, 1)
}

func newCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.NewFromConfig(configs.DefaultTrading(), logging.Discard())
	require.NoError(t, err)
	return cal
}

func TestRunWarmsEveryValidDate(t *testing.T) {
	f := &fakeFetcher{}
	w := New(f, newCalendar(t), dayRanger{}, Config{
		Timeframes: []models.Timeframe{models.TF1h, models.TF3m},
		Force:      true,
		Workers:    2,
	}, logging.Discard())

	from := time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC)
	sum, err := w.Run(context.Background(), from, from.AddDate(0, 0, 6))
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Dates)
	assert.Equal(t, 6, sum.ByStatus[fetcher.StatusCache])
	assert.Zero(t, sum.Failed)
	require.Len(t, f.calls, 6)
	for _, c := range f.calls {
		assert.True(t, c.force)
		assert.Equal(t, 2*24*time.Hour, c.end.Sub(c.start))
	}
}

func TestRunCollectsFailures(t *testing.T) {
	f := &fakeFetcher{fail: map[models.Timeframe]error{
		models.TF1h: fmt.Errorf("%w: disk full", fetcher.ErrCacheWrite),
		models.TF3m: errors.New("boom"),
	}}
	w := New(f, newCalendar(t), dayRanger{}, Config{
		Timeframes: []models.Timeframe{models.TF1h, models.TF3m},
	}, logging.Discard())

	day := time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC)
	sum, err := w.Run(context.Background(), day, day)
	require.Error(t, err)
	assert.ErrorIs(t, err, fetcher.ErrCacheWrite)

	assert.Equal(t, 1, sum.Dates)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.ByStatus[fetcher.StatusFetched])
}

func TestRunSkipsNonTradingDays(t *testing.T) {
	f := &fakeFetcher{}
	w := New(f, newCalendar(t), dayRanger{}, Config{Timeframes: []models.Timeframe{models.TF3m}}, logging.Discard())

	tue := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	sum, err := w.Run(context.Background(), tue, tue.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, sum.Dates)
	assert.Empty(t, f.calls)
}
