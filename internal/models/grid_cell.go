package models

// GridCell is one rectangle of the aggregation grid, in projected map units
// (EPSG:3857 for the damage map).
type GridCell struct {
	ID   int64   `json:"id" db:"id"`
	Row  int     `json:"row" db:"row"` // 0 is the top row
	Col  int     `json:"col" db:"col"`
	MinX float64 `json:"min_x" db:"min_x"`
	MinY float64 `json:"min_y" db:"min_y"`
	MaxX float64 `json:"max_x" db:"max_x"`
	MaxY float64 `json:"max_y" db:"max_y"`
}

// AggregatedCell is a grid cell holding the mean damage of the tree
// observations inside it. Cells without observations are never built.
type AggregatedCell struct {
	GridCell
	DamageMean float64 `json:"damage_mean" db:"damage_mean"`
	PointCount int     `json:"point_count" db:"point_count"`

	// Legend class, filled in when the cell is read back for display
	Class string `json:"class,omitempty"`
	Color string `json:"color,omitempty"`

	// Cell centre in WGS84
	CenterLat float64 `json:"center_lat"`
	CenterLon float64 `json:"center_lon"`
}
