package replay

import (
	"context"
	"fmt"
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

var day = time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC) // Monday, GMT

type fakeFetcher struct {
	series map[models.Timeframe]fetcher.Series
	err    error
	calls  int
	starts []time.Time
	ends   []time.Time
}

func (f *fakeFetcher) GetOrFetch(_ context.Context, start, end time.Time, tf models.Timeframe, _ bool) (fetcher.Series, error) {
	f.calls++
	f.starts = append(f.starts, start)
	f.ends = append(f.ends, end)
	return f.series[tf], f.err
}

type mapCache map[string]Slice

func (m mapCache) Get(_ context.Context, key string) (Slice, bool) {
	s, ok := m[key]
	return s, ok
}

func (m mapCache) Set(_ context.Context, key string, s Slice) { m[key] = s }

func bars(tf models.Timeframe, from time.Time, n int) []models.Bar {
	out := make([]models.Bar, n)
	for i := range n {
		out[i] = models.Bar{Timestamp: from.Add(time.Duration(i) * tf.Width()), Timeframe: tf, Open: 1, High: 2, Low: 0.5, Close: 1.5}
	}
	return out
}

func newPreparer(t *testing.T, f BarFetcher, cache SliceCache) *Preparer {
	t.Helper()
	cal, err := calendar.NewFromConfig(configs.DefaultTrading(), logging.Discard())
	require.NoError(t, err)
	return NewPreparer(f, cal, Config{ContextDaysBefore: 10, ContextDaysAfter: 1}, cache, logging.Discard())
}

func TestPrepareFiltersFinestAndKeepsContext(t *testing.T) {
	f := &fakeFetcher{series: map[models.Timeframe]fetcher.Series{
		// three days of 4h bars around the date
		models.TF4h: {Bars: bars(models.TF4h, day.AddDate(0, 0, -1), 18)},
		// 3m bars from 07:00 the day before through 10:00 on the date
		models.TF3m: {Bars: append(
			bars(models.TF3m, day.AddDate(0, 0, -1).Add(8*time.Hour), 20),
			bars(models.TF3m, day.Add(7*time.Hour), 60)...,
		), Substituted: true},
	}}
	p := newPreparer(t, f, nil)

	r, err := p.Prepare(context.Background(), day, "morning_1", []models.Timeframe{models.TF4h, models.TF1h, models.TF3m})
	require.NoError(t, err)
	assert.Equal(t, "2024-11-04", r.Date)

	// 1h had no data
	assert.NotContains(t, r.Frames, models.TF1h)

	fine := r.Frames[models.TF3m]
	require.Len(t, fine.Bars, 20) // 08:00..08:57
	assert.Equal(t, day.Add(8*time.Hour), fine.Bars[0].Timestamp)
	assert.Equal(t, day.Add(8*time.Hour+57*time.Minute), fine.Bars[19].Timestamp)
	assert.True(t, fine.Substituted)

	coarse := r.Frames[models.TF4h]
	require.Len(t, coarse.Bars, 12) // the previous day and the date
	assert.Equal(t, day.Add(20*time.Hour), coarse.Bars[11].Timestamp)

	require.Equal(t, 3, f.calls)
	assert.Equal(t, day.AddDate(0, 0, -10), f.starts[0])
	assert.Equal(t, day.AddDate(0, 0, 1), f.ends[0])
}

func TestPrepareUnknownWindow(t *testing.T) {
	f := &fakeFetcher{}
	_, err := newPreparer(t, f, nil).Prepare(context.Background(), day, "midnight", []models.Timeframe{models.TF3m})
	assert.ErrorIs(t, err, calendar.ErrUnknownWindow)
	assert.Zero(t, f.calls)
}

func TestPrepareToleratesCacheWriteFailure(t *testing.T) {
	f := &fakeFetcher{
		series: map[models.Timeframe]fetcher.Series{models.TF3m: {Bars: bars(models.TF3m, day.Add(8*time.Hour), 5)}},
		err:    fmt.Errorf("%w: boom", fetcher.ErrCacheWrite),
	}
	r, err := newPreparer(t, f, nil).Prepare(context.Background(), day, "morning_1", []models.Timeframe{models.TF3m})
	require.NoError(t, err)
	assert.Len(t, r.Frames[models.TF3m].Bars, 5)
}

func TestPreparePropagatesFetchErrors(t *testing.T) {
	f := &fakeFetcher{err: fmt.Errorf("boom")}
	_, err := newPreparer(t, f, nil).Prepare(context.Background(), day, "morning_1", []models.Timeframe{models.TF3m})
	assert.Error(t, err)
}

func TestSliceRevealLimitAndCache(t *testing.T) {
	f := &fakeFetcher{series: map[models.Timeframe]fetcher.Series{
		models.TF3m: {Bars: bars(models.TF3m, day.Add(8*time.Hour), 30)},
	}}
	cache := mapCache{}
	p := newPreparer(t, f, cache)

	s, err := p.Slice(context.Background(), day, "morning_1", models.TF3m, 5)
	require.NoError(t, err)
	assert.Len(t, s.Bars, 5)
	assert.Equal(t, 20, s.Total)
	assert.Contains(t, cache, CacheKey(day, "morning_1", models.TF3m))

	full, err := p.Slice(context.Background(), day, "morning_1", models.TF3m, 0)
	require.NoError(t, err)
	assert.Len(t, full.Bars, 20)
	assert.Equal(t, 1, f.calls)
}

func TestSliceSubstitutedNotCached(t *testing.T) {
	f := &fakeFetcher{series: map[models.Timeframe]fetcher.Series{
		models.TF3m: {Bars: bars(models.TF3m, day.Add(8*time.Hour), 4), Substituted: true},
	}}
	cache := mapCache{}
	s, err := newPreparer(t, f, cache).Slice(context.Background(), day, "morning_1", models.TF3m, 0)
	require.NoError(t, err)
	assert.True(t, s.Substituted)
	assert.Empty(t, cache)
}

func TestSliceNoData(t *testing.T) {
	f := &fakeFetcher{series: map[models.Timeframe]fetcher.Series{}}
	s, err := newPreparer(t, f, nil).Slice(context.Background(), day, "morning_1", models.TF3m, 0)
	require.NoError(t, err)
	assert.Empty(t, s.Bars)
	assert.Zero(t, s.Total)
}
