package processing

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guaminsects/crbmap/internal/layer"
)

func pointLayer(t *testing.T, pts map[orb.Point]float64) *layer.Vector {
	t.Helper()
	v := layer.NewVector("trees", "EPSG:3857", "damage")
	for p, d := range pts {
		v.AddFeature(p, map[string]any{"damage": d})
	}
	return v
}

func TestJoinByLocationMeanTwoCells(t *testing.T) {
	grid, err := CreateGrid("grid", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2000, 1000}}, 1000, 1000, "EPSG:3857")
	require.NoError(t, err)
	require.Len(t, grid.Features, 2)

	trees := pointLayer(t, map[orb.Point]float64{
		{100, 100}: 1.0,
		{900, 500}: 3.0,
	})

	out, st, err := JoinByLocationMean("mean_damage_index", grid, trees, "damage")
	require.NoError(t, err)

	require.Len(t, out.Features, 1, "empty cell must be dropped")
	f := out.Features[0]
	assert.Equal(t, int64(1), f.Properties[FieldID])
	assert.Equal(t, 2.0, f.Properties["damage_mean"])
	assert.Equal(t, int64(2), f.Properties["damage_count"])
	assert.Equal(t, JoinStats{Cells: 2, MatchedCells: 1, Points: 2}, st)
}

func TestJoinByLocationMeanEdgePointCountsForBothCells(t *testing.T) {
	grid, err := CreateGrid("grid", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2000, 1000}}, 1000, 1000, "EPSG:3857")
	require.NoError(t, err)

	trees := pointLayer(t, map[orb.Point]float64{
		{1000, 500}: 4.0,
		{1500, 500}: 2.0,
	})

	out, _, err := JoinByLocationMean("mean_damage_index", grid, trees, "damage")
	require.NoError(t, err)
	require.Len(t, out.Features, 2)

	assert.Equal(t, 4.0, out.Features[0].Properties["damage_mean"])
	assert.Equal(t, 3.0, out.Features[1].Properties["damage_mean"])
}

func TestJoinByLocationMeanSkipsNonNumeric(t *testing.T) {
	grid, err := CreateGrid("grid", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 1000}}, 1000, 1000, "EPSG:3857")
	require.NoError(t, err)

	trees := layer.NewVector("trees", "EPSG:3857", "damage")
	trees.AddFeature(orb.Point{10, 10}, map[string]any{"damage": nil})
	trees.AddFeature(orb.Point{20, 20}, map[string]any{"damage": 1.5})

	out, st, err := JoinByLocationMean("m", grid, trees, "damage")
	require.NoError(t, err)
	assert.Equal(t, 1, st.SkippedPoints)
	require.Len(t, out.Features, 1)
	assert.Equal(t, 1.5, out.Features[0].Properties["damage_mean"])
}

func TestJoinByLocationMeanErrors(t *testing.T) {
	grid, err := CreateGrid("grid", orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1000, 1000}}, 1000, 1000, "EPSG:3857")
	require.NoError(t, err)

	wgs := layer.NewVector("trees", "EPSG:4326", "damage")
	_, _, err = JoinByLocationMean("m", grid, wgs, "damage")
	assert.True(t, errors.Is(err, ErrCRSMismatch))

	_, _, err = JoinByLocationMean("m", grid, layer.NewVector("trees", "EPSG:3857"), "damage")
	assert.True(t, errors.Is(err, ErrMissingField))
}

// Every output cell's mean must equal a brute-force mean over the points it
// intersects, and no cell without points may appear.
func TestJoinByLocationMeanMatchesBruteForce(t *testing.T) {
	extent := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10000, 8000}}
	grid, err := CreateGrid("grid", extent, 1000, 1000, "EPSG:3857")
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	trees := layer.NewVector("trees", "EPSG:3857", "damage")
	for i := 0; i < 500; i++ {
		// Snap some points onto grid lines to exercise shared edges.
		x := rng.Float64() * 10000
		y := rng.Float64() * 8000
		if i%7 == 0 {
			x = float64(int(x/1000)) * 1000
		}
		trees.AddFeature(orb.Point{x, y}, map[string]any{"damage": float64(rng.Intn(5))})
	}

	out, _, err := JoinByLocationMean("m", grid, trees, "damage")
	require.NoError(t, err)

	kept := make(map[int64]layer.Feature)
	for _, f := range out.Features {
		kept[f.Properties[FieldID].(int64)] = f
	}

	for _, cell := range grid.Features {
		b := cell.Geometry.Bound()
		var sum float64
		var n int
		for _, p := range trees.Features {
			if b.Contains(p.Geometry.(orb.Point)) {
				sum += p.Properties["damage"].(float64)
				n++
			}
		}

		f, ok := kept[cell.Properties[FieldID].(int64)]
		if n == 0 {
			assert.False(t, ok, "cell %v has no points", cell.Properties[FieldID])
			continue
		}
		require.True(t, ok, "cell %v has %d points", cell.Properties[FieldID], n)
		assert.InDelta(t, sum/float64(n), f.Properties["damage_mean"].(float64), 1e-9)
		assert.Equal(t, int64(n), f.Properties["damage_count"])
	}
}

func TestJoinByLocationMeanNonRectangularPolygon(t *testing.T) {
	target := layer.NewVector("zones", "EPSG:3857", "id")
	target.AddFeature(orb.Polygon{{{0, 0}, {10, 0}, {0, 10}, {0, 0}}}, map[string]any{"id": int64(1)})

	trees := pointLayer(t, map[orb.Point]float64{
		{1, 1}: 2.0,
		{9, 9}: 4.0,
	})

	out, _, err := JoinByLocationMean("m", target, trees, "damage")
	require.NoError(t, err)
	require.Len(t, out.Features, 1)
	assert.Equal(t, 2.0, out.Features[0].Properties["damage_mean"])
}

func TestCellsFromLayer(t *testing.T) {
	grid, err := CreateGrid("grid", orb.Bound{Min: orb.Point{16098000, 1486000}, Max: orb.Point{16099000, 1487000}}, 1000, 1000, "EPSG:3857")
	require.NoError(t, err)
	trees := pointLayer(t, map[orb.Point]float64{{16098500, 1486500}: 2.5})

	out, _, err := JoinByLocationMean("m", grid, trees, "damage")
	require.NoError(t, err)

	cells, err := CellsFromLayer(out, "damage_mean", "damage_count")
	require.NoError(t, err)
	require.Len(t, cells, 1)

	c := cells[0]
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, 2.5, c.DamageMean)
	assert.Equal(t, 1, c.PointCount)
	assert.Equal(t, 16098000.0, c.MinX)
	assert.InDelta(t, 144.61, c.CenterLon, 0.01)
	assert.InDelta(t, 13.24, c.CenterLat, 0.01)
}
