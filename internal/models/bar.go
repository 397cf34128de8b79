// Package models defines the domain models shared by storage, the data pipeline and the service layer.
package models

import (
	"fmt"
	"time"
)

// Bar is one OHLCV observation for a fixed interval.
// (Timestamp, Timeframe) is the natural key.
type Bar struct {
	// Timestamp is the UTC start of the interval.
	Timestamp time.Time `gorm:"column:timestamp;primaryKey;type:timestamptz" json:"timestamp"`

	// Timeframe is the aggregation granularity the bar is cached under.
	Timeframe Timeframe `gorm:"column:timeframe;primaryKey;type:varchar(10)" json:"timeframe"`

	Open   float64 `gorm:"column:open;not null" json:"open"`
	High   float64 `gorm:"column:high;not null" json:"high"`
	Low    float64 `gorm:"column:low;not null" json:"low"`
	Close  float64 `gorm:"column:close;not null" json:"close"`
	Volume float64 `gorm:"column:volume;not null" json:"volume"`

	// InsertedAt is when the row reached the store.
	InsertedAt time.Time `gorm:"column:inserted_at;autoCreateTime" json:"-"`
}

func (Bar) TableName() string {
	return "bars"
}

// Key identifies a bar in the store.
type BarKey struct {
	Timestamp int64 // unix milliseconds
	Timeframe Timeframe
}

func (b Bar) Key() BarKey {
	return BarKey{Timestamp: b.Timestamp.UnixMilli(), Timeframe: b.Timeframe}
}

// Validate checks the OHLCV invariant: high >= max(open, close) >= min(open, close) >= low, volume >= 0.
func (b Bar) Validate() error {
	hi := max(b.Open, b.Close)
	lo := min(b.Open, b.Close)
	if b.High < hi || lo < b.Low {
		return fmt.Errorf("invalid bar at %s: o=%v h=%v l=%v c=%v", b.Timestamp.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("invalid bar at %s: negative volume %v", b.Timestamp.Format(time.RFC3339), b.Volume)
	}
	return nil
}

// Retag returns copies of bars tagged under tf.
func Retag(bars []Bar, tf Timeframe) []Bar {
	out := make([]Bar, len(bars))
	for i, b := range bars {
		b.Timeframe = tf
		out[i] = b
	}
	return out
}
