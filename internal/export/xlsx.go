package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/symbology"
)

const (
	cellsSheet  = "Cells"
	legendSheet = "Legend"
)

// WriteCellsXLSX writes the aggregated cells and the legend to an xlsx
// workbook. Each cell row is filled with its legend colour.
func WriteCellsXLSX(path string, cells []models.AggregatedCell, l symbology.Legend) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetDocProps(&excelize.DocProperties{
		Title:   "CRB mean damage index",
		Subject: "Coconut rhinoceros beetle damage by grid cell",
		Creator: "crbmap",
		Created: time.Now().Format(time.RFC3339),
	})

	if err := writeCellsSheet(f, cells, l); err != nil {
		return fmt.Errorf("failed to create cells sheet: %w", err)
	}
	if err := writeLegendSheet(f, l); err != nil {
		return fmt.Errorf("failed to create legend sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func writeCellsSheet(f *excelize.File, cells []models.AggregatedCell, l symbology.Legend) error {
	if _, err := f.NewSheet(cellsSheet); err != nil {
		return err
	}

	headers := []string{
		"id", "row", "col", "min_x", "min_y", "max_x", "max_y",
		"center_lat", "center_lon", "damage_mean", "point_count", "class",
	}
	for i, header := range headers {
		f.SetCellValue(cellsSheet, cell(i+1, 1), header)
	}

	fills, err := fillStyles(f, l)
	if err != nil {
		return err
	}

	for i, c := range cells {
		row := i + 2
		values := []any{
			c.ID, c.Row, c.Col, c.MinX, c.MinY, c.MaxX, c.MaxY,
			c.CenterLat, c.CenterLon, c.DamageMean, c.PointCount,
		}
		for col, v := range values {
			f.SetCellValue(cellsSheet, cell(col+1, row), v)
		}

		b, ok := l.Classify(c.DamageMean)
		if !ok {
			continue
		}
		last := cell(len(headers), row)
		f.SetCellValue(cellsSheet, last, b.Label)
		f.SetCellStyle(cellsSheet, last, last, fills[b.Label])
	}

	f.SetColWidth(cellsSheet, "A", "L", 14)
	return nil
}

func writeLegendSheet(f *excelize.File, l symbology.Legend) error {
	if _, err := f.NewSheet(legendSheet); err != nil {
		return err
	}

	for i, header := range []string{"low", "high", "color", "label"} {
		f.SetCellValue(legendSheet, cell(i+1, 1), header)
	}

	fills, err := fillStyles(f, l)
	if err != nil {
		return err
	}
	for i, b := range l {
		row := i + 2
		f.SetCellValue(legendSheet, cell(1, row), b.Low)
		f.SetCellValue(legendSheet, cell(2, row), b.High)
		f.SetCellValue(legendSheet, cell(3, row), b.Color)
		f.SetCellValue(legendSheet, cell(4, row), b.Label)
		f.SetCellStyle(legendSheet, cell(3, row), cell(3, row), fills[b.Label])
	}
	return nil
}

func fillStyles(f *excelize.File, l symbology.Legend) (map[string]int, error) {
	styles := make(map[string]int, len(l))
	for _, b := range l {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{b.Color}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create style for %s: %w", b.Label, err)
		}
		styles[b.Label] = id
	}
	return styles, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
