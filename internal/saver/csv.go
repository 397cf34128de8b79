package saver

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/navid-fn/tradereplay/internal/models"
)

// CSVSaver writes a header row t,tf,o,h,l,c,v followed by one row per bar.
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(bars []models.Bar, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	if err := w.Write([]string{"t", "tf", "o", "h", "l", "c", "v"}); err != nil {
		return err
	}
	for _, r := range ToRows(bars) {
		if err := w.Write([]string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Timeframe,
			floatStr(r.Open),
			floatStr(r.High),
			floatStr(r.Low),
			floatStr(r.Close),
			floatStr(r.Volume),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
