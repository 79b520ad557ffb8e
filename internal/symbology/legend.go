// Package symbology classifies mean damage values into the damage map's
// fixed colour legend.
package symbology

import (
	"fmt"
	"math"

	"github.com/guaminsects/crbmap/internal/layer"
)

// Bin is one class of the legend.
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Color string  `json:"color"`
	Label string  `json:"label"`
}

// Contains reports whether v lies in the closed range [Low, High].
func (b Bin) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Legend is an ordered list of bins. Classification walks it first to last
// and the first bin containing the value wins, so a value on a shared
// boundary belongs to the lower bin.
type Legend []Bin

// DefaultLegend is the six-class damage scale. 0 is "No damage", every
// other class covers (low, high].
var DefaultLegend = Legend{
	{Low: 0.0, High: 0.0, Color: "#008000", Label: "No damage"},
	{Low: 0.0, High: 0.5, Color: "#00ff00", Label: "0.0 - 0.5"},
	{Low: 0.5, High: 1.5, Color: "#ffff00", Label: "0.5 - 1.5"},
	{Low: 1.5, High: 2.5, Color: "#ffa500", Label: "1.5 - 2.5"},
	{Low: 2.5, High: 3.5, Color: "#ff6400", Label: "2.5 - 3.5"},
	{Low: 3.5, High: 4.0, Color: "#ff0000", Label: "3.5 - 4.0"},
}

// Classify returns the bin for v. ok is false for NaN and for values no
// bin covers.
func (l Legend) Classify(v float64) (Bin, bool) {
	if math.IsNaN(v) {
		return Bin{}, false
	}
	for _, b := range l {
		if b.Contains(v) {
			return b, true
		}
	}
	return Bin{}, false
}

// Classify classifies v against DefaultLegend.
func Classify(v float64) (Bin, bool) {
	return DefaultLegend.Classify(v)
}

// Validate checks that bins are well formed and ordered.
func (l Legend) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("legend is empty")
	}
	for i, b := range l {
		if b.Low > b.High {
			return fmt.Errorf("bin %d (%s): low %v above high %v", i, b.Label, b.Low, b.High)
		}
		if i > 0 && b.Low < l[i-1].Low {
			return fmt.Errorf("bin %d (%s) is out of order", i, b.Label)
		}
	}
	return nil
}

// Graduated returns a graduated layer style drawing field with l.
func Graduated(field string, l Legend) layer.Style {
	ranges := make([]layer.StyleRange, len(l))
	for i, b := range l {
		ranges[i] = layer.StyleRange{Low: b.Low, High: b.High, Color: b.Color, Label: b.Label}
	}
	return layer.Style{Type: layer.StyleGraduated, Field: field, Ranges: ranges}
}

// Apply styles v with l on field. It fails if v has no such field.
func Apply(v *layer.Vector, field string, l Legend) error {
	if !v.HasField(field) {
		return fmt.Errorf("failed to style %s: no field %q", v.Name, field)
	}
	if err := l.Validate(); err != nil {
		return fmt.Errorf("failed to style %s: %w", v.Name, err)
	}
	v.Style = Graduated(field, l)
	return nil
}

// Counts returns how many features of v fall in each bin, keyed by label.
// Features with no value or an unclassified value are counted under "".
func Counts(v *layer.Vector, field string, l Legend) map[string]int {
	counts := make(map[string]int, len(l)+1)
	for _, f := range v.Features {
		val, ok := f.Float(field)
		if !ok {
			counts[""]++
			continue
		}
		b, ok := l.Classify(val)
		if !ok {
			counts[""]++
			continue
		}
		counts[b.Label]++
	}
	return counts
}
