// Package export writes the finished map as files a web client can use:
// one GeoJSON file per vector layer, a legend with summary statistics and
// a spreadsheet of the aggregated cells.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/spatial"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// FileName maps a layer name to a GeoJSON file name.
func FileName(layerName string) string {
	name := strings.TrimSuffix(layerName, ".geojson")
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	if name == "" {
		name = "layer"
	}
	return name + ".geojson"
}

// FeatureCollection converts v to a WGS84 feature collection. The layer
// name and style travel as foreign members.
func FeatureCollection(v *layer.Vector) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range v.Features {
		if f.Geometry == nil {
			continue
		}
		g, err := spatial.Transform(f.Geometry, v.CRS, spatial.CRSWGS84)
		if err != nil {
			return nil, fmt.Errorf("failed to reproject %s: %w", v.Name, err)
		}

		gf := geojson.NewFeature(g)
		gf.ID = f.ID
		for k, val := range f.Properties {
			gf.Properties[k] = val
		}
		fc.Append(gf)
	}

	fc.ExtraMembers = geojson.Properties{
		"name":  v.Name,
		"style": v.Style,
	}
	return fc, nil
}

// WriteLayers writes every vector layer of p to dir in drawing order and
// returns the paths written.
func WriteLayers(dir string, p *layer.Project) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	var paths []string
	for _, l := range p.Layers() {
		v, ok := l.(*layer.Vector)
		if !ok {
			continue
		}

		fc, err := FeatureCollection(v)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(fc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", v.Name, err)
		}

		path := filepath.Join(dir, FileName(v.Name))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
