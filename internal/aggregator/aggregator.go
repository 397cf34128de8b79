// Package aggregator derives coarser OHLCV bars from finer ones.
package aggregator

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/navid-fn/tradereplay/internal/models"
)

var (
	// ErrUnsupportedTimeframe is returned for a target timeframe the aggregator does not know.
	ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

	// ErrNotDerivable is returned when the target width is not a whole multiple of the source width.
	ErrNotDerivable = errors.New("timeframe not derivable from source")
)

// Result holds aggregated bars and the number of incomplete buckets that were discarded.
type Result struct {
	Bars    []models.Bar
	Dropped int
}

// CanDerive reports whether target bars can be built exactly from source bars.
func CanDerive(source, target models.Timeframe) bool {
	sw, tw := source.Width(), target.Width()
	if sw <= 0 || tw <= 0 || tw < sw {
		return false
	}
	return tw%sw == 0
}

// Aggregate buckets bars of the source timeframe into target-aligned windows.
// Open is the first bar's open, close the last bar's close, high the max, low the
// min and volume the sum. A bucket missing any source bar is dropped.
func Aggregate(bars []models.Bar, source, target models.Timeframe) (Result, error) {
	if !target.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, target)
	}
	if !source.Valid() {
		return Result{}, fmt.Errorf("%w: source %q", ErrUnsupportedTimeframe, source)
	}
	if !CanDerive(source, target) {
		return Result{}, fmt.Errorf("%w: %s from %s", ErrNotDerivable, target, source)
	}
	if len(bars) == 0 {
		return Result{}, nil
	}
	if source == target {
		return Result{Bars: models.Retag(sortedCopy(bars), target)}, nil
	}

	need := int(target.Width() / source.Width())
	sorted := sortedCopy(bars)

	var (
		out     []models.Bar
		dropped int
		cur     models.Bar
		count   int
		lastTS  time.Time
	)
	flush := func() {
		if count == 0 {
			return
		}
		if count == need {
			out = append(out, cur)
		} else {
			dropped++
		}
		count = 0
	}

	for _, b := range sorted {
		ts := b.Timestamp.UTC()
		if count > 0 && ts.Equal(lastTS) {
			// duplicate source bar, first one wins
			continue
		}
		bucket := target.Align(ts)
		if count > 0 && !bucket.Equal(cur.Timestamp) {
			flush()
		}
		if count == 0 {
			cur = models.Bar{
				Timestamp: bucket,
				Timeframe: target,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			}
		} else {
			cur.High = max(cur.High, b.High)
			cur.Low = min(cur.Low, b.Low)
			cur.Close = b.Close
			cur.Volume += b.Volume
		}
		count++
		lastTS = ts
	}
	flush()

	return Result{Bars: out, Dropped: dropped}, nil
}

func sortedCopy(bars []models.Bar) []models.Bar {
	out := slices.Clone(bars)
	slices.SortStableFunc(out, func(a, b models.Bar) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}
