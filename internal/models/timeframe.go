package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownTimeframe is returned when a timeframe tag is not one of the supported values.
var ErrUnknownTimeframe = errors.New("unknown timeframe")

// Timeframe is the aggregation granularity of a bar sequence.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF3m  Timeframe = "3m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

var timeframeWidths = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF3m:  3 * time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
}

// ParseTimeframe validates a tag such as "3m" or "4h".
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.TrimSpace(s))
	if _, ok := timeframeWidths[tf]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
	}
	return tf, nil
}

// ParseTimeframes parses a comma separated list, e.g. "4h,1h,3m".
func ParseTimeframes(s string) ([]Timeframe, error) {
	var out []Timeframe
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		tf, err := ParseTimeframe(part)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}

// Valid reports whether tf is a supported timeframe.
func (tf Timeframe) Valid() bool {
	_, ok := timeframeWidths[tf]
	return ok
}

// Width is the bucket length. Zero for unknown timeframes.
func (tf Timeframe) Width() time.Duration {
	return timeframeWidths[tf]
}

// Align truncates t to the start of its bucket, aligned to the Unix epoch in UTC.
func (tf Timeframe) Align(t time.Time) time.Time {
	w := tf.Width()
	if w == 0 {
		return t.UTC()
	}
	return t.UTC().Truncate(w)
}

// Finest returns the timeframe with the smallest width.
func Finest(tfs []Timeframe) (Timeframe, bool) {
	if len(tfs) == 0 {
		return "", false
	}
	finest := tfs[0]
	for _, tf := range tfs[1:] {
		if tf.Width() < finest.Width() {
			finest = tf
		}
	}
	return finest, true
}

func (tf Timeframe) String() string { return string(tf) }
