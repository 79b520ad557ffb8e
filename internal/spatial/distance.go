package spatial

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// PathLengthMeters returns the great-circle length of a WGS84 line
// (orb points are lon, lat).
func PathLengthMeters(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}

	latlngs := make([]s2.LatLng, len(ls))
	for i, p := range ls {
		latlngs[i] = s2.LatLngFromDegrees(p.Lat(), p.Lon())
	}
	return s2.PolylineFromLatLngs(latlngs).Length().Radians() * EarthRadiusMeters
}

// GeometryLengthMeters sums PathLengthMeters over the lines of a WGS84
// geometry. Non-linear geometries have zero length.
func GeometryLengthMeters(g orb.Geometry) float64 {
	switch g := g.(type) {
	case orb.LineString:
		return PathLengthMeters(g)
	case orb.MultiLineString:
		var total float64
		for _, ls := range g {
			total += PathLengthMeters(ls)
		}
		return total
	case orb.Collection:
		var total float64
		for _, child := range g {
			total += GeometryLengthMeters(child)
		}
		return total
	}
	return 0
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)
