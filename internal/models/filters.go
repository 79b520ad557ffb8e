package models

// GridFilter represents filter parameters for querying aggregated cells
type GridFilter struct {
	MinDamage *float64 `form:"minDamage"` // inclusive, nil means no bound
	MaxDamage *float64 `form:"maxDamage"` // inclusive, nil means no bound
	MinPoints int      `form:"minPoints"`
	Class     string   `form:"class"` // legend label, e.g. "0.5 - 1.5"
	Limit     int      `form:"limit"`
}

// RunFilter represents filter parameters for listing pipeline runs
type RunFilter struct {
	RunID    string `form:"runId"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}
