package layer

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectAddGetRemove(t *testing.T) {
	p := NewProject()

	base := p.Add(&Raster{Meta: Meta{Name: "Guam", CRS: "EPSG:3857"}, URL: "https://tiles/{z}/{x}/{y}.png"})
	trees := p.Add(NewVector("trees", "EPSG:3857", "damage"))
	assert.NotEqual(t, base, trees)
	assert.Equal(t, 2, p.Len())

	v, err := p.Vector(trees)
	require.NoError(t, err)
	assert.Equal(t, "trees", v.Name)
	assert.Equal(t, trees, v.ID)
	assert.True(t, v.Visible)

	_, err = p.Vector(base)
	assert.True(t, errors.Is(err, ErrWrongKind))

	r, err := p.Raster(base)
	require.NoError(t, err)
	assert.Equal(t, "Guam", r.Name)

	require.NoError(t, p.Remove(base))
	_, err = p.Get(base)
	assert.True(t, errors.Is(err, ErrLayerNotFound))
	assert.True(t, errors.Is(p.Remove(base), ErrLayerNotFound))

	layers := p.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, "trees", layers[0].Info().Name)
}

func TestProjectHandlesAreNotReused(t *testing.T) {
	p := NewProject()
	a := p.Add(NewVector("a", "EPSG:4326"))
	require.NoError(t, p.Remove(a))
	b := p.Add(NewVector("a", "EPSG:4326"))
	assert.NotEqual(t, a, b)
}

func TestProjectSetVisible(t *testing.T) {
	p := NewProject()
	id := p.Add(NewVector("grid", "EPSG:3857"))
	require.NoError(t, p.SetVisible(id, false))

	l, err := p.Get(id)
	require.NoError(t, err)
	assert.False(t, l.Info().Visible)
}

func TestVectorAddFeatureAndBound(t *testing.T) {
	v := NewVector("pts", "EPSG:3857", "frame_id")
	_, ok := v.Bound()
	assert.False(t, ok)

	first := v.AddFeature(orb.Point{1, 2}, map[string]any{"frame_id": int64(7), "damage": 1.5})
	second := v.AddFeature(orb.Point{-3, 4}, nil)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, []string{"frame_id", "damage"}, v.Fields)

	b, ok := v.Bound()
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{-3, 2}, Max: orb.Point{1, 4}}, b)
}

func TestFeatureFloat(t *testing.T) {
	f := Feature{Properties: map[string]any{
		"f": 2.5, "i": int64(3), "s": "1.25", "bad": "x", "nil": nil,
	}}

	for field, want := range map[string]float64{"f": 2.5, "i": 3, "s": 1.25} {
		got, ok := f.Float(field)
		assert.True(t, ok, field)
		assert.Equal(t, want, got, field)
	}
	for _, field := range []string{"bad", "nil", "missing"} {
		_, ok := f.Float(field)
		assert.False(t, ok, field)
	}
}

func TestVectorCloneIsDeep(t *testing.T) {
	v := NewVector("tracks", "EPSG:4326")
	v.AddFeature(orb.LineString{{0, 0}, {1, 1}}, map[string]any{"video": "A"})

	c := v.Clone("copy")
	c.Features[0].Properties["video"] = "B"
	c.Features[0].Geometry.(orb.LineString)[0] = orb.Point{5, 5}

	assert.Equal(t, "copy", c.Name)
	assert.Equal(t, "A", v.Features[0].Properties["video"])
	assert.Equal(t, orb.Point{0, 0}, v.Features[0].Geometry.(orb.LineString)[0])
	assert.Equal(t, v.Features[0].ID, c.Features[0].ID)
}
