package spatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// Simplify returns a Douglas-Peucker simplified copy of ls. tolerance is in
// the line's own (projected) units. Endpoints are kept.
func Simplify(ls orb.LineString, tolerance float64) orb.LineString {
	out := append(orb.LineString(nil), ls...)
	if tolerance <= 0 {
		return out
	}
	return simplify.DouglasPeucker(tolerance).LineString(out)
}

// SimplifyGeometry returns a simplified copy of g. Rings that would
// collapse below four points are kept unsimplified.
func SimplifyGeometry(g orb.Geometry, tolerance float64) orb.Geometry {
	if g == nil {
		return nil
	}
	out := orb.Clone(g)
	if tolerance <= 0 {
		return out
	}

	dp := simplify.DouglasPeucker(tolerance)
	switch out := out.(type) {
	case orb.Ring:
		return simplifyRing(dp, out)
	case orb.Polygon:
		return simplifyPolygon(dp, out)
	case orb.MultiPolygon:
		for i := range out {
			out[i] = simplifyPolygon(dp, out[i])
		}
		return out
	case orb.Collection:
		for i := range out {
			out[i] = SimplifyGeometry(out[i], tolerance)
		}
		return out
	}
	return dp.Simplify(out)
}

func simplifyPolygon(dp *simplify.DouglasPeuckerSimplifier, p orb.Polygon) orb.Polygon {
	for i := range p {
		p[i] = simplifyRing(dp, p[i])
	}
	return p
}

// simplifyRing leaves r untouched; the simplifier works in place.
func simplifyRing(dp *simplify.DouglasPeuckerSimplifier, r orb.Ring) orb.Ring {
	s := dp.Ring(append(orb.Ring(nil), r...))
	if len(s) < 4 {
		return r
	}
	return s
}

// RectPolygon builds a closed, clockwise-from-top-left rectangle polygon.
func RectPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.Min[0], b.Max[1]},
		{b.Max[0], b.Max[1]},
		{b.Max[0], b.Min[1]},
		{b.Min[0], b.Min[1]},
		{b.Min[0], b.Max[1]},
	}}
}
