package flights

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"surveil-screener/models"
)

// WriteScoresCSV exports the reconstruction error table (id, error, actual, predicted),
// highest error first, for plotting outside the tool.
func WriteScoresCSV(path string, rows []models.ScoreRow) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tempPath, err)
	}

	w := csv.NewWriter(f)
	_ = w.Write([]string{"id", "error", "actual", "predicted"})
	for _, row := range SortByError(rows) {
		_ = w.Write([]string{
			row.ID,
			strconv.FormatFloat(row.Error, 'g', -1, 64),
			row.Actual,
			strconv.FormatBool(row.Predicted),
		})
	}
	w.Flush()

	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write scores: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close scores file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
