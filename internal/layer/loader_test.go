package layer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseGeoJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"feature collection", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}},{"type":"Feature","geometry":{"type":"Point","coordinates":[3,4]},"properties":{}}]}`, 2},
		{"feature", `{"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,2],[3,4]]},"properties":{"video_id":"A"}}`, 1},
		{"bare geometry", `{"type":"LineString","coordinates":[[144.75,13.47],[144.76,13.48]]}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features, err := ParseGeoJSON([]byte(tt.body))
			require.NoError(t, err)
			assert.Len(t, features, tt.want)
		})
	}

	_, err := ParseGeoJSON([]byte(`{"coordinates":[1,2]}`))
	assert.Error(t, err)
	_, err = ParseGeoJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadTrackFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "20200630_131814.geojson", `{"type":"LineString","coordinates":[[144.75,13.47],[144.76,13.48]]}`)
	b := writeFile(t, dir, "20200630_132814.geojson", `{"type":"Feature","geometry":{"type":"LineString","coordinates":[[144.70,13.40],[144.71,13.41]]},"properties":null}`)

	p := NewProject()
	ids, err := NewLoader(zap.NewNop()).LoadTrackFiles(p, []string{a, b})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	v, err := p.Vector(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "20200630_131814.geojson", v.Name)
	assert.Equal(t, "EPSG:4326", v.CRS)
	require.Len(t, v.Features, 1)
	assert.IsType(t, orb.LineString{}, v.Features[0].Geometry)
}

func TestLoadTrackFilesMissing(t *testing.T) {
	_, err := NewLoader(nil).LoadTrackFiles(NewProject(), []string{filepath.Join(t.TempDir(), "nope.geojson")})
	assert.Error(t, err)
}

func TestLoadPointsCSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "trees.csv", "frame_id,lat,lon,damage\n1,13.47,144.75,0.5\n2,13.48,144.76,4\n3,,144.77,2.0\n")

	p := NewProject()
	id, err := NewLoader(nil).LoadPointsCSV(p, "trees", path, CSVOptions{XField: "lon", YField: "lat", CRS: "EPSG:4326"})
	require.NoError(t, err)

	v, err := p.Vector(id)
	require.NoError(t, err)
	require.Len(t, v.Features, 2, "row without latitude gets no feature")
	assert.Equal(t, []string{"frame_id", "lat", "lon", "damage"}, v.Fields)

	f := v.Features[0]
	assert.Equal(t, orb.Point{144.75, 13.47}, f.Geometry)
	assert.Equal(t, int64(1), f.Properties["frame_id"])
	assert.Equal(t, 0.5, f.Properties["damage"])
	assert.Equal(t, 4.0, v.Features[1].Properties["damage"])
}

func TestLoadPointsCSVNonFinite(t *testing.T) {
	body := "frame_id,lat,lon,damage\n" +
		"1,13.47,144.75,1.5\n" +
		"2,13.48,144.76,NaN\n" +
		"3,13.49,144.77,+Inf\n" +
		"4,NaN,144.78,2.0\n"
	path := writeFile(t, t.TempDir(), "trees.csv", body)

	p := NewProject()
	id, err := NewLoader(nil).LoadPointsCSV(p, "trees", path, CSVOptions{XField: "lon", YField: "lat", CRS: "EPSG:4326"})
	require.NoError(t, err)

	v, err := p.Vector(id)
	require.NoError(t, err)
	require.Len(t, v.Features, 3, "row with a NaN coordinate gets no feature")
	assert.Equal(t, 1.5, v.Features[0].Properties["damage"])
	assert.Nil(t, v.Features[1].Properties["damage"])
	assert.Nil(t, v.Features[2].Properties["damage"])

	for _, f := range v.Features {
		_, err := json.Marshal(f.Properties)
		assert.NoError(t, err)
	}
}

func TestLoadPointsCSVMissingColumns(t *testing.T) {
	path := writeFile(t, t.TempDir(), "vcuts.csv", "frame_id,x,y\n1,2,3\n")
	_, err := NewLoader(nil).LoadPointsCSV(NewProject(), "vcuts", path, CSVOptions{XField: "lon", YField: "lat", CRS: "EPSG:4326"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestLoadBaseMap(t *testing.T) {
	p := NewProject()
	view := orb.Bound{Min: orb.Point{16098000, 1486000}, Max: orb.Point{16137000, 1535000}}

	id, err := NewLoader(nil).LoadBaseMap(p, "Guam", "https://a.tile.openstreetmap.org/{z}/{x}/{y}.png", "EPSG3857", view)
	require.NoError(t, err)

	r, err := p.Raster(id)
	require.NoError(t, err)
	assert.Equal(t, "EPSG:3857", r.CRS)
	assert.Equal(t, view, p.View)

	_, err = NewLoader(nil).LoadBaseMap(p, "Guam", "https://tiles.example/static.png", "EPSG:3857", view)
	assert.Error(t, err)
}

type fakeStore map[string]Layer

func (s fakeStore) LoadLayer(_ context.Context, name string) (Layer, error) {
	l, ok := s[name]
	if !ok {
		return nil, ErrLayerNotFound
	}
	return l, nil
}

func TestLoadFromStore(t *testing.T) {
	store := fakeStore{
		"tracks":            NewVector("tracks", "EPSG:3857"),
		"mean_damage_index": NewVector("mean_damage_index", "EPSG:3857"),
	}

	p := NewProject()
	ids, err := NewLoader(nil).LoadFromStore(context.Background(), store, p, "tracks", "mean_damage_index")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, 2, p.Len())

	_, err = NewLoader(nil).LoadFromStore(context.Background(), store, p, "frames")
	assert.True(t, errors.Is(err, ErrLayerNotFound))
}
