package models

import "time"

// LayerSummary describes a layer persisted in the project store.
type LayerSummary struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Kind         string    `json:"kind" db:"kind"` // vector or raster
	CRS          string    `json:"crs" db:"crs"`
	Source       string    `json:"source,omitempty" db:"source"`
	StyleJSON    string    `json:"-" db:"style_json"`
	Style        any       `json:"style,omitempty"`
	FeatureCount int       `json:"feature_count" db:"feature_count"`
	Visible      bool      `json:"visible" db:"visible"`
	Position     int       `json:"position" db:"position"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// MapView is the saved view extent of the project.
type MapView struct {
	CRS   string     `json:"crs"`
	Bound [4]float64 `json:"bound"` // min x, min y, max x, max y
}
