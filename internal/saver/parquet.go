package saver

import (
	"github.com/parquet-go/parquet-go"

	"github.com/navid-fn/tradereplay/internal/models"
)

// ParquetSaver writes rows as a Parquet file.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(bars []models.Bar, path string) error {
	return parquet.WriteFile(path, ToRows(bars))
}
