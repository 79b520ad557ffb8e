package survey

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/guaminsects/crbmap/internal/models"
)

// WriteTreesCSV writes tree observations with a frame_id,lat,lon,damage
// header. NULL values are written as empty cells.
func WriteTreesCSV(path string, trees []models.TreeObservation) error {
	return writeCSV(path, models.TreeCSVHeader, len(trees), func(i int) []string {
		t := trees[i]
		return []string{strconv.FormatInt(t.FrameID, 10), formatFloat(t.Lat), formatFloat(t.Lon), formatFloat(t.Damage)}
	})
}

// WriteCutsCSV writes v-cut observations with a frame_id,lat,lon header.
func WriteCutsCSV(path string, cuts []models.CutObservation) error {
	return writeCSV(path, models.CutCSVHeader, len(cuts), func(i int) []string {
		c := cuts[i]
		return []string{strconv.FormatInt(c.FrameID, 10), formatFloat(c.Lat), formatFloat(c.Lon)}
	})
}

func writeCSV(path string, header []string, n int, row func(int) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := writer.Write(row(i)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
