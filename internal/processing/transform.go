package processing

import (
	"fmt"

	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/spatial"
)

// Merge attribute names.
const (
	FieldSourceLayer = "layer"
	FieldSourcePath  = "path"
)

// ReprojectLayer returns a copy of v in crs.
func ReprojectLayer(name string, v *layer.Vector, crs string) (*layer.Vector, error) {
	dst, err := spatial.NormalizeCRS(crs)
	if err != nil {
		return nil, err
	}

	out := v.Clone(name)
	out.CRS = dst
	for i, f := range out.Features {
		g, err := spatial.Transform(f.Geometry, v.CRS, dst)
		if err != nil {
			return nil, fmt.Errorf("failed to reproject %s: %w", v.Name, err)
		}
		out.Features[i].Geometry = g
	}
	return out, nil
}

// MergeVectorLayers combines layers into one layer in crs. Each feature
// gains the name and source path of the layer it came from.
func MergeVectorLayers(name string, layers []*layer.Vector, crs string) (*layer.Vector, error) {
	dst, err := spatial.NormalizeCRS(crs)
	if err != nil {
		return nil, err
	}

	out := layer.NewVector(name, dst)
	for _, v := range layers {
		for _, f := range v.Features {
			g, err := spatial.Transform(f.Geometry, v.CRS, dst)
			if err != nil {
				return nil, fmt.Errorf("failed to merge %s: %w", v.Name, err)
			}

			props := make(map[string]any, len(f.Properties)+2)
			for k, val := range f.Properties {
				props[k] = val
			}
			props[FieldSourceLayer] = v.Name
			props[FieldSourcePath] = v.Source
			out.AddFeature(g, props)
		}
	}
	return out, nil
}

// SimplifyGeometries returns a copy of v with every geometry simplified by
// Douglas-Peucker at tolerance map units.
func SimplifyGeometries(name string, v *layer.Vector, tolerance float64) *layer.Vector {
	out := v.Clone(name)
	for i, f := range out.Features {
		out.Features[i].Geometry = spatial.SimplifyGeometry(f.Geometry, tolerance)
	}
	return out
}
