package processing

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/stats"
)

// JoinStats reports what a join did with its inputs.
type JoinStats struct {
	Cells         int // cells in the target layer
	MatchedCells  int // cells kept in the output
	Points        int // point features in the join layer
	SkippedPoints int // points without a numeric value for the field
}

// MeanField and CountField name the summary attributes added by
// JoinByLocationMean.
func MeanField(field string) string  { return field + "_mean" }
func CountField(field string) string { return field + "_count" }

// JoinByLocationMean summarises field over the points of join that
// intersect each polygon of target. A point on a shared edge intersects,
// and counts for, every cell touching it. Polygons no point intersects are
// left out of the result. The output keeps target's attributes and adds
// MeanField(field) and CountField(field).
func JoinByLocationMean(name string, target, join *layer.Vector, field string) (*layer.Vector, JoinStats, error) {
	st := JoinStats{Cells: len(target.Features)}

	if target.CRS != join.CRS {
		return nil, st, fmt.Errorf("%w: %s is %s, %s is %s", ErrCRSMismatch, target.Name, target.CRS, join.Name, join.CRS)
	}
	if !join.HasField(field) {
		return nil, st, fmt.Errorf("%w: %q in layer %s", ErrMissingField, field, join.Name)
	}

	var points []valuedPoint
	for _, f := range join.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		st.Points++
		v, ok := f.Float(field)
		if !ok {
			st.SkippedPoints++
			continue
		}
		points = append(points, valuedPoint{p: p, v: v})
	}

	meanField, countField := MeanField(field), CountField(field)
	out := layer.NewVector(name, target.CRS, append(append([]string(nil), target.Fields...), meanField, countField)...)
	out.Source = target.Name

	idx := newPointIndex(points, cellSize(target))
	for _, cell := range target.Features {
		if cell.Geometry == nil {
			continue
		}

		var acc stats.MeanAccumulator
		idx.visit(cell.Geometry.Bound(), func(vp valuedPoint) {
			if intersects(cell.Geometry, vp.p) {
				acc.Add(vp.v)
			}
		})
		if acc.Count() == 0 {
			continue
		}

		props := make(map[string]any, len(cell.Properties)+2)
		for k, v := range cell.Properties {
			props[k] = v
		}
		props[meanField] = acc.Mean()
		props[countField] = int64(acc.Count())
		out.AddFeature(orb.Clone(cell.Geometry), props)
		st.MatchedCells++
	}

	return out, st, nil
}

type valuedPoint struct {
	p orb.Point
	v float64
}

// intersects uses the closed rectangle test for axis-aligned rectangles and
// the planar containment test for any other polygon.
func intersects(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		if isRectangle(g) {
			return g.Bound().Contains(p)
		}
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		for _, poly := range g {
			if intersects(poly, p) {
				return true
			}
		}
		return false
	case orb.Bound:
		return g.Contains(p)
	}
	return false
}

func isRectangle(p orb.Polygon) bool {
	if len(p) != 1 || len(p[0]) != 5 {
		return false
	}
	b := p[0].Bound()
	for _, pt := range p[0] {
		onX := pt[0] == b.Min[0] || pt[0] == b.Max[0]
		onY := pt[1] == b.Min[1] || pt[1] == b.Max[1]
		if !onX || !onY {
			return false
		}
	}
	return true
}

func cellSize(target *layer.Vector) float64 {
	size := 0.0
	for _, f := range target.Features {
		if f.Geometry == nil {
			continue
		}
		b := f.Geometry.Bound()
		size = math.Max(size, math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]))
	}
	return size
}

// pointIndex buckets points on a square lattice so a cell only looks at
// points near it.
type pointIndex struct {
	size    float64
	buckets map[[2]int64][]valuedPoint
	all     []valuedPoint
}

func newPointIndex(points []valuedPoint, size float64) *pointIndex {
	idx := &pointIndex{size: size, all: points}
	if !(size > 0) || math.IsInf(size, 0) {
		return idx
	}

	idx.buckets = make(map[[2]int64][]valuedPoint)
	for _, vp := range points {
		k := idx.key(vp.p)
		idx.buckets[k] = append(idx.buckets[k], vp)
	}
	return idx
}

func (idx *pointIndex) key(p orb.Point) [2]int64 {
	return [2]int64{int64(math.Floor(p[0] / idx.size)), int64(math.Floor(p[1] / idx.size))}
}

// visit calls fn for every point that may lie in b. A point is visited at
// most once per call.
func (idx *pointIndex) visit(b orb.Bound, fn func(valuedPoint)) {
	if idx.buckets == nil {
		for _, vp := range idx.all {
			fn(vp)
		}
		return
	}

	lo, hi := idx.key(b.Min), idx.key(b.Max)
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for _, vp := range idx.buckets[[2]int64{x, y}] {
				fn(vp)
			}
		}
	}
}
