package layer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/logging"
	"github.com/guaminsects/crbmap/internal/spatial"
)

// Store is a source of previously persisted layers.
type Store interface {
	LoadLayer(ctx context.Context, name string) (Layer, error)
}

// CSVOptions describes a delimited-text point file.
type CSVOptions struct {
	XField string // longitude / easting column
	YField string // latitude / northing column
	CRS    string
}

// Loader reads layers from files and from the project store.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new loader
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logging.Component(logger, "loader")}
}

// LoadBaseMap adds an XYZ tile layer and points the project view at view.
func (l *Loader) LoadBaseMap(p *Project, name, url, crs string, view orb.Bound) (ID, error) {
	c, err := spatial.NormalizeCRS(crs)
	if err != nil {
		return 0, fmt.Errorf("failed to load base map %s: %w", name, err)
	}
	if !strings.Contains(url, "{z}") || !strings.Contains(url, "{x}") || !strings.Contains(url, "{y}") {
		return 0, fmt.Errorf("failed to load base map %s: tile url %q lacks {z}/{x}/{y}", name, url)
	}

	id := p.Add(&Raster{Meta: Meta{Name: name, CRS: c, Source: url}, URL: url})
	p.SetView(view, c)

	l.logger.Info("Base map loaded", zap.String("layer", name), zap.String("url", url))
	return id, nil
}

// LoadGeoJSONFile adds one vector layer named after the file.
func (l *Loader) LoadGeoJSONFile(p *Project, path string) (ID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	features, err := ParseGeoJSON(data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	v := NewVector(filepath.Base(path), spatial.CRSWGS84)
	v.Source = path
	for _, f := range features {
		v.AddFeature(f.Geometry, map[string]any(f.Properties))
	}

	l.logger.Debug("GeoJSON layer loaded", zap.String("path", path), zap.Int("features", len(v.Features)))
	return p.Add(v), nil
}

// LoadTrackFiles adds one vector layer per track file, in the given order.
func (l *Loader) LoadTrackFiles(p *Project, paths []string) ([]ID, error) {
	ids := make([]ID, 0, len(paths))
	for _, path := range paths {
		id, err := l.LoadGeoJSONFile(p, path)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	l.logger.Info("Track layers loaded", zap.Int("count", len(ids)))
	return ids, nil
}

// LoadPointsCSV adds a point layer built from two coordinate columns.
// Column types are detected: all-integer columns become int64, all-numeric
// columns float64, anything else string. Empty cells and NaN or infinite
// numbers are nil. Rows whose
// coordinates are missing or not numeric get no feature and are counted in
// a warning.
func (l *Loader) LoadPointsCSV(p *Project, name, path string, opts CSVOptions) (ID, error) {
	crs, err := spatial.NormalizeCRS(opts.CRS)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", path, err)
	}

	header, rows, err := readCSV(path)
	if err != nil {
		return 0, err
	}

	xi, yi := indexOf(header, opts.XField), indexOf(header, opts.YField)
	if xi < 0 || yi < 0 {
		return 0, fmt.Errorf("failed to load %s: columns %q and %q required, have %v", path, opts.XField, opts.YField, header)
	}

	kinds := detectColumnKinds(header, rows)

	v := NewVector(name, crs, header...)
	v.Source = path
	skipped := 0
	for _, row := range rows {
		x, okX := parseFinite(row[xi])
		y, okY := parseFinite(row[yi])
		if !okX || !okY {
			skipped++
			continue
		}

		props := make(map[string]any, len(header))
		for i, col := range header {
			props[col] = convertCell(row[i], kinds[i])
		}
		v.AddFeature(orb.Point{x, y}, props)
	}

	if skipped > 0 {
		l.logger.Warn("Rows without valid coordinates skipped", zap.String("path", path), zap.Int("skipped", skipped))
	}
	l.logger.Info("Point layer loaded", zap.String("layer", name), zap.Int("features", len(v.Features)))
	return p.Add(v), nil
}

// LoadFromStore adds the named layers from the project store, in order.
func (l *Loader) LoadFromStore(ctx context.Context, store Store, p *Project, names ...string) ([]ID, error) {
	ids := make([]ID, 0, len(names))
	for _, name := range names {
		layer, err := store.LoadLayer(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load layer %s from store: %w", name, err)
		}
		ids = append(ids, p.Add(layer))
	}

	l.logger.Info("Layers loaded from store", zap.Strings("layers", names))
	return ids, nil
}

// ParseGeoJSON decodes a FeatureCollection, a single Feature or a bare
// geometry into features.
func ParseGeoJSON(data []byte) ([]*geojson.Feature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		return fc.Features, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		return []*geojson.Feature{f}, nil
	case "":
		return nil, errors.New("invalid GeoJSON: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		return []*geojson.Feature{geojson.NewFeature(g.Geometry())}, nil
	}
}

func readCSV(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("failed to read %s: empty file", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s header: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return header, rows, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

type columnKind int

const (
	kindInt columnKind = iota
	kindFloat
	kindString
)

func detectColumnKinds(header []string, rows [][]string) []columnKind {
	kinds := make([]columnKind, len(header))
	for i := range header {
		kind := kindInt
		for _, row := range rows {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			if kind == kindInt {
				if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
					continue
				}
				kind = kindFloat
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				kind = kindString
				break
			}
		}
		kinds[i] = kind
	}
	return kinds
}

func convertCell(cell string, kind columnKind) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	switch kind {
	case kindInt:
		n, _ := strconv.ParseInt(cell, 10, 64)
		return n
	case kindFloat:
		f, ok := parseFinite(cell)
		if !ok {
			return nil
		}
		return f
	}
	return cell
}

// parseFinite parses a float, rejecting NaN and the infinities.
func parseFinite(cell string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
