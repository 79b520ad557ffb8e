package processing

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/spatial"
)

// Grid attribute names, matching the processing toolbox's rectangle grid.
const (
	FieldID     = "id"
	FieldRow    = "row_index"
	FieldCol    = "col_index"
	FieldLeft   = "left"
	FieldTop    = "top"
	FieldRight  = "right"
	FieldBottom = "bottom"
)

const maxGridCells = 10_000_000

// CreateGrid covers extent with hSpacing x vSpacing rectangles, starting at
// the top-left corner and numbering cells row by row from 1. Cells are
// full-size, so the last row and column may reach past the extent.
func CreateGrid(name string, extent orb.Bound, hSpacing, vSpacing float64, crs string) (*layer.Vector, error) {
	if hSpacing <= 0 || vSpacing <= 0 || math.IsNaN(hSpacing) || math.IsNaN(vSpacing) {
		return nil, fmt.Errorf("%w: spacing %vx%v", ErrInvalidGrid, hSpacing, vSpacing)
	}
	width := extent.Max[0] - extent.Min[0]
	height := extent.Max[1] - extent.Min[1]
	if !(width > 0) || !(height > 0) {
		return nil, fmt.Errorf("%w: empty extent %v", ErrInvalidGrid, extent)
	}

	c, err := spatial.NormalizeCRS(crs)
	if err != nil {
		return nil, err
	}

	cols := int(math.Ceil(width / hSpacing))
	rows := int(math.Ceil(height / vSpacing))
	if float64(cols)*float64(rows) > maxGridCells {
		return nil, fmt.Errorf("%w: %d x %d cells is too many", ErrInvalidGrid, cols, rows)
	}

	grid := layer.NewVector(name, c, FieldID, FieldRow, FieldCol, FieldLeft, FieldTop, FieldRight, FieldBottom)
	var id int64
	for r := 0; r < rows; r++ {
		top := extent.Max[1] - float64(r)*vSpacing
		bottom := top - vSpacing
		for col := 0; col < cols; col++ {
			left := extent.Min[0] + float64(col)*hSpacing
			right := left + hSpacing

			id++
			b := orb.Bound{Min: orb.Point{left, bottom}, Max: orb.Point{right, top}}
			grid.AddFeature(spatial.RectPolygon(b), map[string]any{
				FieldID:     id,
				FieldRow:    int64(r),
				FieldCol:    int64(col),
				FieldLeft:   left,
				FieldTop:    top,
				FieldRight:  right,
				FieldBottom: bottom,
			})
		}
	}

	return grid, nil
}

// CellsFromLayer reads an aggregated grid layer back into cells.
func CellsFromLayer(v *layer.Vector, meanField, countField string) ([]models.AggregatedCell, error) {
	cells := make([]models.AggregatedCell, 0, len(v.Features))
	for _, f := range v.Features {
		mean, ok := f.Float(meanField)
		if !ok {
			return nil, fmt.Errorf("%w: %s on feature %d", ErrMissingField, meanField, f.ID)
		}
		count, _ := f.Float(countField)

		var b orb.Bound
		if f.Geometry != nil {
			b = f.Geometry.Bound()
		}
		id, _ := f.Float(FieldID)
		row, _ := f.Float(FieldRow)
		col, _ := f.Float(FieldCol)

		center := spatial.ToWGS84(b.Center())
		if v.CRS == spatial.CRSWGS84 {
			center = b.Center()
		}

		cells = append(cells, models.AggregatedCell{
			GridCell: models.GridCell{
				ID:   int64(id),
				Row:  int(row),
				Col:  int(col),
				MinX: b.Min[0],
				MinY: b.Min[1],
				MaxX: b.Max[0],
				MaxY: b.Max[1],
			},
			DamageMean: mean,
			PointCount: int(count),
			CenterLat:  center.Lat(),
			CenterLon:  center.Lon(),
		})
	}
	return cells, nil
}
