package saver

import (
	"encoding/json"
	"os"

	"github.com/navid-fn/tradereplay/internal/models"
)

// JSONSaver writes a JSON array of rows.
type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(bars []models.Bar, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(ToRows(bars))
}
