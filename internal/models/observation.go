package models

// Track is one survey video's GPS track as stored in videos.gps_track_json.
// GeoJSON holds the column text verbatim.
type Track struct {
	VideoID string `json:"video_id" db:"video_id"`
	GeoJSON string `json:"gps_track_json" db:"gps_track_json"`
}

// TreeObservation is one tree seen in a video frame, with its CRB damage
// score (observed range 0.0 - 4.0). Nil fields are NULL in the database.
type TreeObservation struct {
	FrameID int64    `json:"frame_id" db:"frame_id"`
	Lat     *float64 `json:"lat" db:"lat"`
	Lon     *float64 `json:"lon" db:"lon"`
	Damage  *float64 `json:"damage" db:"damage"`
}

// CutObservation is a v-shaped frond cut seen in a video frame.
type CutObservation struct {
	FrameID int64    `json:"frame_id" db:"frame_id"`
	Lat     *float64 `json:"lat" db:"lat"`
	Lon     *float64 `json:"lon" db:"lon"`
}

// CSV headers written by the extractor.
var (
	TreeCSVHeader = []string{"frame_id", "lat", "lon", "damage"}
	CutCSVHeader  = []string{"frame_id", "lat", "lon"}
)
