// Package saver writes cached bars to files for offline analysis.
package saver

import (
	"fmt"
	"strings"
	"time"

	"github.com/navid-fn/tradereplay/internal/models"
)

// BarSaver writes bars to path in one file format.
type BarSaver interface {
	Save(bars []models.Bar, path string) error
	Extension() string
}

// Row is the flat export record shared by every format.
type Row struct {
	Timestamp int64   `json:"t" parquet:"t"`
	Timeframe string  `json:"tf" parquet:"tf"`
	Open      float64 `json:"o" parquet:"o"`
	High      float64 `json:"h" parquet:"h"`
	Low       float64 `json:"l" parquet:"l"`
	Close     float64 `json:"c" parquet:"c"`
	Volume    float64 `json:"v" parquet:"v"`
}

// ToRows converts bars to export rows, timestamps in unix milliseconds.
func ToRows(bars []models.Bar) []Row {
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = Row{
			Timestamp: b.Timestamp.UnixMilli(),
			Timeframe: string(b.Timeframe),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	return rows
}

// FromRow converts an export row back into a bar.
func FromRow(r Row) models.Bar {
	return models.Bar{
		Timestamp: time.UnixMilli(r.Timestamp).UTC(),
		Timeframe: models.Timeframe(r.Timeframe),
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
	}
}

// New returns the saver for format (csv, json, parquet).
func New(format string) (BarSaver, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}, nil
	case "json":
		return JSONSaver{}, nil
	case "parquet":
		return ParquetSaver{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
