package processing

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guaminsects/crbmap/internal/layer"
)

func TestReprojectLayer(t *testing.T) {
	trees := layer.NewVector("trees", "EPSG:4326", "damage")
	trees.AddFeature(orb.Point{144.752, 13.4757}, map[string]any{"damage": 2.0})

	out, err := ReprojectLayer("trees_3857", trees, "EPSG:3857")
	require.NoError(t, err)

	assert.Equal(t, "EPSG:3857", out.CRS)
	p := out.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 16113719, p[0], 5)
	assert.InDelta(t, 1514133, p[1], 5)
	assert.Equal(t, 2.0, out.Features[0].Properties["damage"])

	assert.Equal(t, orb.Point{144.752, 13.4757}, trees.Features[0].Geometry, "input is untouched")
}

func TestReprojectLayerUnsupported(t *testing.T) {
	_, err := ReprojectLayer("x", layer.NewVector("trees", "EPSG:4326"), "EPSG:32655")
	assert.Error(t, err)
}

func TestMergeVectorLayers(t *testing.T) {
	a := layer.NewVector("A.geojson", "EPSG:4326")
	a.Source = "out/A.geojson"
	a.AddFeature(orb.LineString{{144.70, 13.40}, {144.71, 13.41}}, nil)

	b := layer.NewVector("B.geojson", "EPSG:4326")
	b.Source = "out/B.geojson"
	b.AddFeature(orb.LineString{{144.80, 13.50}, {144.81, 13.51}}, map[string]any{"video": "B"})

	merged, err := MergeVectorLayers("merged", []*layer.Vector{a, b}, "EPSG:3857")
	require.NoError(t, err)

	require.Len(t, merged.Features, 2)
	assert.Equal(t, "EPSG:3857", merged.CRS)
	assert.Equal(t, "A.geojson", merged.Features[0].Properties[FieldSourceLayer])
	assert.Equal(t, "out/B.geojson", merged.Features[1].Properties[FieldSourcePath])
	assert.Equal(t, "B", merged.Features[1].Properties["video"])
	assert.True(t, merged.HasField(FieldSourceLayer))

	ls := merged.Features[0].Geometry.(orb.LineString)
	assert.Greater(t, ls[0][0], 1e7)
}

func TestSimplifyGeometries(t *testing.T) {
	v := layer.NewVector("tracks", "EPSG:3857")
	v.AddFeature(orb.LineString{{0, 0}, {50, 3}, {100, 0}, {150, 40}}, nil)

	out := SimplifyGeometries("simplified", v, 10)

	assert.Equal(t, orb.LineString{{0, 0}, {100, 0}, {150, 40}}, out.Features[0].Geometry)
	assert.Len(t, v.Features[0].Geometry.(orb.LineString), 4)
}
