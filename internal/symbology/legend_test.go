package symbology

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guaminsects/crbmap/internal/layer"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		value float64
		label string
		color string
	}{
		{0.0, "No damage", "#008000"},
		{0.01, "0.0 - 0.5", "#00ff00"},
		{0.5, "0.0 - 0.5", "#00ff00"},
		{0.51, "0.5 - 1.5", "#ffff00"},
		{1.5, "0.5 - 1.5", "#ffff00"},
		{2.0, "1.5 - 2.5", "#ffa500"},
		{2.5, "1.5 - 2.5", "#ffa500"},
		{3.5, "2.5 - 3.5", "#ff6400"},
		{3.7, "3.5 - 4.0", "#ff0000"},
		{4.0, "3.5 - 4.0", "#ff0000"},
	}

	for _, tt := range tests {
		b, ok := Classify(tt.value)
		require.True(t, ok, "value %v", tt.value)
		assert.Equal(t, tt.label, b.Label, "value %v", tt.value)
		assert.Equal(t, tt.color, b.Color, "value %v", tt.value)
	}
}

func TestClassifyOutOfRange(t *testing.T) {
	for _, v := range []float64{-0.1, 4.01, math.NaN(), math.Inf(1)} {
		_, ok := Classify(v)
		assert.False(t, ok, "value %v", v)
	}
}

func TestClassifyIsTotalOnDomain(t *testing.T) {
	colors := make(map[string]bool)
	for _, b := range DefaultLegend {
		colors[b.Color] = true
	}
	require.Len(t, colors, 6)

	for i := 0; i <= 4000; i++ {
		v := float64(i) / 1000
		b, ok := Classify(v)
		require.True(t, ok, "value %v", v)
		assert.True(t, colors[b.Color])

		again, _ := Classify(v)
		assert.Equal(t, b, again)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultLegend.Validate())
	assert.Error(t, Legend{}.Validate())
	assert.Error(t, Legend{{Low: 2, High: 1}}.Validate())
	assert.Error(t, Legend{{Low: 2, High: 3}, {Low: 1, High: 2}}.Validate())
}

func TestApply(t *testing.T) {
	v := layer.NewVector("mean_damage_index", "EPSG:3857", "damage_mean")
	v.AddFeature(orb.Point{0, 0}, map[string]any{"damage_mean": 0.5})
	v.AddFeature(orb.Point{1, 1}, map[string]any{"damage_mean": 3.9})
	v.AddFeature(orb.Point{2, 2}, map[string]any{"damage_mean": 0.0})

	require.NoError(t, Apply(v, "damage_mean", DefaultLegend))
	assert.Equal(t, layer.StyleGraduated, v.Style.Type)
	assert.Equal(t, "damage_mean", v.Style.Field)
	require.Len(t, v.Style.Ranges, 6)
	assert.Equal(t, "#ff6400", v.Style.Ranges[4].Color)

	assert.Equal(t, map[string]int{"0.0 - 0.5": 1, "3.5 - 4.0": 1, "No damage": 1}, Counts(v, "damage_mean", DefaultLegend))

	assert.Error(t, Apply(v, "damage", DefaultLegend))
}
