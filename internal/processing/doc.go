// Package processing implements the geoprocessing steps the damage map
// needs: grid creation, the mean-by-location join, layer merge,
// simplification and reprojection. Every function returns a new layer and
// leaves its inputs untouched.
package processing

import "errors"

var (
	ErrCRSMismatch  = errors.New("layers are in different CRSs")
	ErrInvalidGrid  = errors.New("invalid grid parameters")
	ErrMissingField = errors.New("field not found")
)
