package layer

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"
)

// Feature is one geometry with its attributes.
type Feature struct {
	ID         int64
	Geometry   orb.Geometry
	Properties map[string]any
}

// Float returns the named attribute as a float64. ok is false when the
// attribute is missing or not numeric.
func (f Feature) Float(field string) (float64, bool) {
	v, ok := f.Properties[field]
	if !ok || v == nil {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// StyleRange is one class of a graduated style.
type StyleRange struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Color string  `json:"color"`
	Label string  `json:"label"`
}

// Style is how a vector layer should be drawn.
type Style struct {
	Type   string       `json:"type"` // "single" or "graduated"
	Color  string       `json:"color,omitempty"`
	Width  float64      `json:"width,omitempty"`
	Field  string       `json:"field,omitempty"`
	Ranges []StyleRange `json:"ranges,omitempty"`
}

const (
	StyleSingle    = "single"
	StyleGraduated = "graduated"
)

// Vector is a layer of features sharing one CRS.
type Vector struct {
	Meta
	Fields   []string // attribute names in column order
	Features []Feature
	Style    Style

	nextFeature int64
}

func (v *Vector) Kind() Kind { return KindVector }

// NewVector returns an empty vector layer.
func NewVector(name, crs string, fields ...string) *Vector {
	return &Vector{
		Meta:   Meta{Name: name, CRS: crs},
		Fields: append([]string(nil), fields...),
		Style:  Style{Type: StyleSingle},
	}
}

// AddFeature appends a feature and returns its feature ID. Properties not
// yet listed in Fields are appended to it.
func (v *Vector) AddFeature(g orb.Geometry, props map[string]any) int64 {
	v.nextFeature++
	if props == nil {
		props = make(map[string]any)
	}
	for k := range props {
		if !v.HasField(k) {
			v.Fields = append(v.Fields, k)
		}
	}
	v.Features = append(v.Features, Feature{ID: v.nextFeature, Geometry: g, Properties: props})
	return v.nextFeature
}

// HasField reports whether name is one of the layer's attributes.
func (v *Vector) HasField(name string) bool {
	for _, f := range v.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Bound returns the extent of all features; ok is false for an empty layer.
func (v *Vector) Bound() (b orb.Bound, ok bool) {
	for _, f := range v.Features {
		if f.Geometry == nil {
			continue
		}
		fb := f.Geometry.Bound()
		if !ok {
			b, ok = fb, true
			continue
		}
		b = b.Union(fb)
	}
	return b, ok
}

// SetSingleStyle draws every feature with one colour and line width.
func (v *Vector) SetSingleStyle(color string, width float64) {
	v.Style = Style{Type: StyleSingle, Color: color, Width: width}
}

// Clone returns a deep copy with a new name. Feature IDs are kept,
// geometries are cloned and property maps copied.
func (v *Vector) Clone(name string) *Vector {
	out := NewVector(name, v.CRS, v.Fields...)
	out.Source = v.Source
	out.Style = v.Style
	out.nextFeature = v.nextFeature
	out.Features = make([]Feature, len(v.Features))
	for i, f := range v.Features {
		props := make(map[string]any, len(f.Properties))
		for k, val := range f.Properties {
			props[k] = val
		}
		var g orb.Geometry
		if f.Geometry != nil {
			g = orb.Clone(f.Geometry)
		}
		out.Features[i] = Feature{ID: f.ID, Geometry: g, Properties: props}
	}
	return out
}

func (v *Vector) String() string {
	return fmt.Sprintf("%s (%s, %d features)", v.Name, v.CRS, len(v.Features))
}
