package models

import (
	"fmt"
	"time"
)

// ClockTime is a time of day in the display timezone, second precision.
type ClockTime struct {
	Hour   int
	Minute int
	Second int
}

// ParseClockTime parses "HH:MM" or "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
}

// ClockOf returns the clock time of t in its own location.
func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// Seconds since midnight.
func (c ClockTime) Seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// TimeWindow is a named intraday slice in display-local clock time. Both ends are inclusive.
type TimeWindow struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Start ClockTime `json:"-"`
	End   ClockTime `json:"-"`
}

// Contains reports whether local falls within [Start, End].
func (w TimeWindow) Contains(local time.Time) bool {
	s := ClockOf(local).Seconds()
	return s >= w.Start.Seconds() && s <= w.End.Seconds()
}
