package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/guaminsects/crbmap/internal/stats"
	"github.com/guaminsects/crbmap/internal/symbology"
)

// LegendDocument is the legend.json payload.
type LegendDocument struct {
	Layer        string        `json:"layer"`
	Field        string        `json:"field"`
	Bins         []LegendEntry `json:"bins"`
	Summary      stats.Summary `json:"summary"`
	Unclassified int           `json:"unclassified"`
}

// LegendEntry is a legend bin with the number of cells drawn in it.
type LegendEntry struct {
	symbology.Bin
	Count int `json:"count"`
}

// NewLegendDocument summarises damage values against l.
func NewLegendDocument(layerName, field string, l symbology.Legend, values []float64) LegendDocument {
	doc := LegendDocument{
		Layer:   layerName,
		Field:   field,
		Bins:    make([]LegendEntry, len(l)),
		Summary: stats.Summarize(values),
	}

	index := make(map[string]int, len(l))
	for i, b := range l {
		doc.Bins[i] = LegendEntry{Bin: b}
		index[b.Label] = i
	}
	for _, v := range values {
		b, ok := l.Classify(v)
		if !ok {
			doc.Unclassified++
			continue
		}
		doc.Bins[index[b.Label]].Count++
	}
	return doc
}

// WriteLegend writes doc as indented JSON.
func WriteLegend(path string, doc LegendDocument) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode legend: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
