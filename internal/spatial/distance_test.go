package spatial

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestPathLengthMeters(t *testing.T) {
	// One hundredth of a degree of latitude is about 1112 m.
	line := orb.LineString{{144.75, 13.47}, {144.75, 13.48}}
	assert.InDelta(t, 1112, PathLengthMeters(line), 2)
	assert.Zero(t, PathLengthMeters(orb.LineString{{144.75, 13.47}}))
}

func TestGeometryLengthMeters(t *testing.T) {
	seg := orb.LineString{{144.75, 13.47}, {144.75, 13.48}}
	multi := orb.MultiLineString{seg, seg}

	assert.InDelta(t, 2*PathLengthMeters(seg), GeometryLengthMeters(multi), 1e-6)
	assert.Zero(t, GeometryLengthMeters(orb.Point{1, 2}))
	assert.InDelta(t, 1112, GeometryLengthMeters(orb.Collection{seg, orb.Point{0, 0}}), 2)
}
