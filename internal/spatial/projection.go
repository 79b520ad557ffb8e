package spatial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Supported coordinate reference systems.
const (
	CRSWGS84       = "EPSG:4326"
	CRSWebMercator = "EPSG:3857"
)

// ErrUnsupportedCRS is returned for any CRS other than WGS84 and Web Mercator.
var ErrUnsupportedCRS = errors.New("unsupported CRS")

// NormalizeCRS canonicalises CRS spellings such as "epsg3857" or
// "EPSG:900913".
func NormalizeCRS(crs string) (string, error) {
	c := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(crs), " ", ""))
	switch c {
	case "EPSG:4326", "EPSG4326", "WGS84", "CRS84", "OGC:CRS84":
		return CRSWGS84, nil
	case "EPSG:3857", "EPSG3857", "EPSG:900913", "EPSG:3785":
		return CRSWebMercator, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCRS, crs)
}

// Transform returns a reprojected copy of g. The input is left untouched.
func Transform(g orb.Geometry, from, to string) (orb.Geometry, error) {
	src, err := NormalizeCRS(from)
	if err != nil {
		return nil, err
	}
	dst, err := NormalizeCRS(to)
	if err != nil {
		return nil, err
	}

	if g == nil {
		return nil, nil
	}
	out := orb.Clone(g)
	if src == dst {
		return out, nil
	}

	if src == CRSWGS84 {
		return project.Geometry(out, project.WGS84.ToMercator), nil
	}
	return project.Geometry(out, project.Mercator.ToWGS84), nil
}

// ToWGS84 converts a Web Mercator point to lon/lat.
func ToWGS84(p orb.Point) orb.Point {
	return project.Point(p, project.Mercator.ToWGS84)
}
