package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navid-fn/tradereplay/internal/models"
)

var t0 = time.Date(2024, 11, 4, 8, 0, 0, 0, time.UTC)

func minuteBars(start time.Time, n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range n {
		p := 100 + float64(i)
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Timeframe: models.TF1m,
			Open:      p,
			High:      p + 2,
			Low:       p - 1,
			Close:     p + 1,
			Volume:    10,
		}
	}
	return bars
}

func TestAggregateCompleteBuckets(t *testing.T) {
	bars := minuteBars(t0, 6)

	res, err := Aggregate(bars, models.TF1m, models.TF3m)
	require.NoError(t, err)
	require.Len(t, res.Bars, 2)
	assert.Zero(t, res.Dropped)

	first := res.Bars[0]
	assert.Equal(t, t0, first.Timestamp)
	assert.Equal(t, models.TF3m, first.Timeframe)
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 104.0, first.High)
	assert.Equal(t, 99.0, first.Low)
	assert.Equal(t, 103.0, first.Close)
	assert.Equal(t, 30.0, first.Volume)

	second := res.Bars[1]
	assert.Equal(t, t0.Add(3*time.Minute), second.Timestamp)
	assert.Equal(t, 103.0, second.Open)
	assert.Equal(t, 106.0, second.Close)
}

func TestAggregateDropsBucketWithGap(t *testing.T) {
	bars := minuteBars(t0, 6)
	// remove 08:04 so the second bucket is incomplete
	bars = append(bars[:4], bars[5:]...)

	res, err := Aggregate(bars, models.TF1m, models.TF3m)
	require.NoError(t, err)
	require.Len(t, res.Bars, 1)
	assert.Equal(t, t0, res.Bars[0].Timestamp)
	assert.Equal(t, 1, res.Dropped)
}

func TestAggregateUnalignedStart(t *testing.T) {
	// 08:01..08:06 leaves 08:00 and 08:06 buckets partial
	bars := minuteBars(t0.Add(time.Minute), 6)

	res, err := Aggregate(bars, models.TF1m, models.TF3m)
	require.NoError(t, err)
	require.Len(t, res.Bars, 1)
	assert.Equal(t, t0.Add(3*time.Minute), res.Bars[0].Timestamp)
	assert.Equal(t, 2, res.Dropped)
}

func TestAggregateSortsInput(t *testing.T) {
	bars := minuteBars(t0, 3)
	bars[0], bars[2] = bars[2], bars[0]

	res, err := Aggregate(bars, models.TF1m, models.TF3m)
	require.NoError(t, err)
	require.Len(t, res.Bars, 1)
	assert.Equal(t, 100.0, res.Bars[0].Open)
	assert.Equal(t, 103.0, res.Bars[0].Close)
}

func TestAggregateHourlyFromFiveMinute(t *testing.T) {
	var bars []models.Bar
	for i := range 12 {
		bars = append(bars, models.Bar{
			Timestamp: t0.Add(time.Duration(i*5) * time.Minute),
			Timeframe: models.TF5m,
			Open:      1, High: float64(i + 2), Low: 0.5, Close: float64(i + 1), Volume: 1,
		})
	}
	res, err := Aggregate(bars, models.TF5m, models.TF1h)
	require.NoError(t, err)
	require.Len(t, res.Bars, 1)
	assert.Equal(t, 13.0, res.Bars[0].High)
	assert.Equal(t, 12.0, res.Bars[0].Close)
	assert.Equal(t, 12.0, res.Bars[0].Volume)
}

func TestAggregateErrors(t *testing.T) {
	bars := minuteBars(t0, 3)

	_, err := Aggregate(bars, models.TF1m, models.Timeframe("7m"))
	assert.ErrorIs(t, err, ErrUnsupportedTimeframe)

	_, err = Aggregate(bars, models.TF5m, models.TF3m)
	assert.ErrorIs(t, err, ErrNotDerivable)

	_, err = Aggregate(bars, models.TF1h, models.TF5m)
	assert.ErrorIs(t, err, ErrNotDerivable)
}

func TestAggregateSameTimeframe(t *testing.T) {
	bars := minuteBars(t0, 2)
	res, err := Aggregate(bars, models.TF1m, models.TF1m)
	require.NoError(t, err)
	assert.Equal(t, bars, res.Bars)
}

func TestCanDerive(t *testing.T) {
	assert.True(t, CanDerive(models.TF1m, models.TF3m))
	assert.True(t, CanDerive(models.TF5m, models.TF15m))
	assert.True(t, CanDerive(models.TF1h, models.TF4h))
	assert.False(t, CanDerive(models.TF5m, models.TF3m))
	assert.False(t, CanDerive(models.TF1h, models.TF15m))
}
