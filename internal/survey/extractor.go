package survey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/config"
	"github.com/guaminsects/crbmap/internal/logging"
	"github.com/guaminsects/crbmap/internal/models"
)

// Output file names.
const (
	TreesFile = "trees.csv"
	CutsFile  = "vcuts.csv"
)

var (
	// ErrMissingVideos is returned when listed videos have no videos row.
	ErrMissingVideos = errors.New("videos not found in survey database")
	// ErrNoVideos is returned for an empty video list.
	ErrNoVideos = errors.New("no videos requested")
	// ErrUnsafeVideoID is returned for a video id that cannot name a file.
	ErrUnsafeVideoID = errors.New("video id is not a safe file name")
	// ErrTrackNameCollision is returned when two video ids, such as X.mp4
	// and X, map to the same track file.
	ErrTrackNameCollision = errors.New("video ids share a track file name")
)

const (
	tracksQuery = `SELECT video_id, gps_track_json
		FROM videos
		WHERE video_id IN (%s)
		ORDER BY video_id`

	treesQuery = `SELECT frames.frame_id, lat, lon, damage
		FROM videos, frames, trees
		WHERE videos.video_id = frames.video_id
		AND frames.frame_id = trees.frame_id
		AND videos.video_id IN (%s)
		ORDER BY frames.frame_id`

	cutsQuery = `SELECT frames.frame_id, lat, lon
		FROM videos, frames, vcuts
		WHERE videos.video_id = frames.video_id
		AND frames.frame_id = vcuts.frame_id
		AND videos.video_id IN (%s)
		ORDER BY frames.frame_id`
)

// Result lists what Extract wrote.
type Result struct {
	TrackFiles    []string `json:"track_files"`
	TreesCSV      string   `json:"trees_csv"`
	CutsCSV       string   `json:"cuts_csv"`
	Trees         int      `json:"trees"`
	Cuts          int      `json:"cuts"`
	MissingVideos []string `json:"missing_videos,omitempty"`
}

// Extractor runs the three survey queries for a list of videos.
type Extractor struct {
	db          *sql.DB
	driver      string
	skipMissing bool
	logger      *zap.Logger
}

// NewExtractor creates a new extractor. driver selects the placeholder
// style. With skipMissing set, listed videos absent from the database are
// logged and skipped instead of failing the run.
func NewExtractor(db *sql.DB, driver string, skipMissing bool, logger *zap.Logger) *Extractor {
	return &Extractor{
		db:          db,
		driver:      driver,
		skipMissing: skipMissing,
		logger:      logging.Component(logger, "extractor"),
	}
}

// NewExtractorFromParameters creates an extractor configured by params.
func NewExtractorFromParameters(db *sql.DB, params *config.Parameters, logger *zap.Logger) *Extractor {
	return NewExtractor(db, params.DBDriver, params.SkipMissingVideos, logger)
}

// Tracks returns the GPS track of every listed video found in the database.
func (e *Extractor) Tracks(ctx context.Context, videos []string) ([]models.Track, error) {
	query, args, err := e.inQuery(tracksQuery, videos)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		var id string
		var track sql.NullString
		if err := rows.Scan(&id, &track); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		if !track.Valid {
			return nil, fmt.Errorf("video %s has no gps track", id)
		}
		tracks = append(tracks, models.Track{VideoID: id, GeoJSON: track.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tracks: %w", err)
	}
	return tracks, nil
}

// Trees returns the tree observations of the listed videos.
func (e *Extractor) Trees(ctx context.Context, videos []string) ([]models.TreeObservation, error) {
	query, args, err := e.inQuery(treesQuery, videos)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trees: %w", err)
	}
	defer rows.Close()

	var trees []models.TreeObservation
	for rows.Next() {
		var t models.TreeObservation
		var lat, lon, damage sql.NullFloat64
		if err := rows.Scan(&t.FrameID, &lat, &lon, &damage); err != nil {
			return nil, fmt.Errorf("failed to scan tree: %w", err)
		}
		t.Lat, t.Lon, t.Damage = nullable(lat), nullable(lon), nullable(damage)
		trees = append(trees, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trees: %w", err)
	}
	return trees, nil
}

// Cuts returns the v-cut observations of the listed videos.
func (e *Extractor) Cuts(ctx context.Context, videos []string) ([]models.CutObservation, error) {
	query, args, err := e.inQuery(cutsQuery, videos)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vcuts: %w", err)
	}
	defer rows.Close()

	var cuts []models.CutObservation
	for rows.Next() {
		var c models.CutObservation
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&c.FrameID, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan vcut: %w", err)
		}
		c.Lat, c.Lon = nullable(lat), nullable(lon)
		cuts = append(cuts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vcuts: %w", err)
	}
	return cuts, nil
}

// Extract writes one GeoJSON file per video plus trees.csv and vcuts.csv
// into outDir.
func (e *Extractor) Extract(ctx context.Context, videos []string, outDir string) (*Result, error) {
	if len(videos) == 0 {
		return nil, ErrNoVideos
	}
	if _, err := TrackFiles(outDir, videos); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tracks, err := e.Tracks(ctx, videos)
	if err != nil {
		return nil, err
	}

	res := &Result{MissingVideos: missingVideos(videos, tracks)}
	if len(res.MissingVideos) > 0 {
		if !e.skipMissing {
			return nil, fmt.Errorf("%w: %s", ErrMissingVideos, strings.Join(res.MissingVideos, ", "))
		}
		e.logger.Warn("Skipping videos missing from survey database", zap.Strings("videos", res.MissingVideos))
	}

	for _, t := range tracks {
		path, err := writeTrack(outDir, t)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("Track written", zap.String("video", t.VideoID), zap.String("path", path))
		res.TrackFiles = append(res.TrackFiles, path)
	}

	trees, err := e.Trees(ctx, videos)
	if err != nil {
		return nil, err
	}
	res.TreesCSV = filepath.Join(outDir, TreesFile)
	if err := WriteTreesCSV(res.TreesCSV, trees); err != nil {
		return nil, err
	}
	res.Trees = len(trees)

	cuts, err := e.Cuts(ctx, videos)
	if err != nil {
		return nil, err
	}
	res.CutsCSV = filepath.Join(outDir, CutsFile)
	if err := WriteCutsCSV(res.CutsCSV, cuts); err != nil {
		return nil, err
	}
	res.Cuts = len(cuts)

	e.logger.Info("Survey data extracted",
		zap.Int("tracks", len(res.TrackFiles)),
		zap.Int("trees", res.Trees),
		zap.Int("vcuts", res.Cuts),
		zap.String("dir", outDir))
	return res, nil
}

// TrackFileName maps a video id such as 20200630_131814.mp4 to its track
// file name, 20200630_131814.geojson.
func TrackFileName(videoID string) (string, error) {
	if videoID == "" || videoID == "." || videoID == ".." ||
		strings.ContainsAny(videoID, `/\`) || strings.ContainsRune(videoID, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeVideoID, videoID)
	}
	return strings.TrimSuffix(videoID, ".mp4") + ".geojson", nil
}

// TrackFiles returns the track file paths for videos in list order.
// A repeated id yields one path; distinct ids sharing a file name fail.
func TrackFiles(outDir string, videos []string) ([]string, error) {
	owners := make(map[string]string, len(videos))
	paths := make([]string, 0, len(videos))
	for _, v := range videos {
		name, err := TrackFileName(v)
		if err != nil {
			return nil, err
		}
		if owner, ok := owners[name]; ok {
			if owner != v {
				return nil, fmt.Errorf("%w: %q and %q both write %s", ErrTrackNameCollision, owner, v, name)
			}
			continue
		}
		owners[name] = v
		paths = append(paths, filepath.Join(outDir, name))
	}
	return paths, nil
}

func writeTrack(outDir string, t models.Track) (string, error) {
	name, err := TrackFileName(t.VideoID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(outDir, name)
	if err := os.WriteFile(path, []byte(t.GeoJSON), 0644); err != nil {
		return "", fmt.Errorf("failed to write track %s: %w", path, err)
	}
	return path, nil
}

func (e *Extractor) inQuery(tmpl string, videos []string) (string, []any, error) {
	if len(videos) == 0 {
		return "", nil, ErrNoVideos
	}
	args := make([]any, len(videos))
	for i, v := range videos {
		args[i] = v
	}
	return fmt.Sprintf(tmpl, placeholders(e.driver, 1, len(videos))), args, nil
}

func missingVideos(videos []string, tracks []models.Track) []string {
	found := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		found[t.VideoID] = true
	}
	var missing []string
	for _, v := range videos {
		if !found[v] {
			missing = append(missing, v)
		}
	}
	sort.Strings(missing)
	return missing
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
