package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/guaminsects/crbmap/internal/database"
	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/models"
)

const viewSettingKey = "view"

// LayerRepository persists map projects: layers, their features and the
// view extent.
type LayerRepository struct {
	db *sql.DB
}

// NewLayerRepository creates a new layer repository
func NewLayerRepository(db *sql.DB) *LayerRepository {
	return &LayerRepository{db: db}
}

// SaveProject replaces the stored project with p in one transaction.
func (r *LayerRepository) SaveProject(ctx context.Context, p *layer.Project) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM layers`); err != nil {
			return fmt.Errorf("failed to clear layers: %w", err)
		}

		for pos, l := range p.Layers() {
			if err := insertLayer(ctx, tx, l, pos); err != nil {
				return err
			}
		}

		view, err := json.Marshal(models.MapView{
			CRS:   p.ViewCRS,
			Bound: [4]float64{p.View.Min[0], p.View.Min[1], p.View.Max[0], p.View.Max[1]},
		})
		if err != nil {
			return fmt.Errorf("failed to encode view: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO project_settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, viewSettingKey, string(view))
		if err != nil {
			return fmt.Errorf("failed to save view: %w", err)
		}
		return nil
	})
}

func insertLayer(ctx context.Context, tx *sql.Tx, l layer.Layer, pos int) error {
	meta := l.Info()
	source := meta.Source
	if r, ok := l.(*layer.Raster); ok && r.URL != "" {
		source = r.URL
	}

	var style, fields []byte
	featureCount := 0
	if v, ok := l.(*layer.Vector); ok {
		var err error
		if style, err = json.Marshal(v.Style); err != nil {
			return fmt.Errorf("failed to encode style of %s: %w", meta.Name, err)
		}
		if fields, err = json.Marshal(v.Fields); err != nil {
			return fmt.Errorf("failed to encode fields of %s: %w", meta.Name, err)
		}
		featureCount = len(v.Features)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO layers (name, kind, crs, source, style_json, fields_json,
			feature_count, visible, position, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Name, string(l.Kind()), meta.CRS, source, nullString(style), nullString(fields),
		featureCount, meta.Visible, pos, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert layer %s: %w", meta.Name, err)
	}

	v, ok := l.(*layer.Vector)
	if !ok {
		return nil
	}

	layerID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO layer_features (layer_id, feature_id, geometry, properties_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare feature insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range v.Features {
		var geom []byte
		if f.Geometry != nil {
			if geom, err = geojson.NewGeometry(f.Geometry).MarshalJSON(); err != nil {
				return fmt.Errorf("failed to encode feature %d of %s: %w", f.ID, meta.Name, err)
			}
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("failed to encode properties of feature %d of %s: %w", f.ID, meta.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, layerID, f.ID, nullString(geom), string(props)); err != nil {
			return fmt.Errorf("failed to insert feature %d of %s: %w", f.ID, meta.Name, err)
		}
	}
	return nil
}

// LoadLayer reads the named layer back into memory.
func (r *LayerRepository) LoadLayer(ctx context.Context, name string) (layer.Layer, error) {
	s, err := r.getSummary(ctx, `WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, s)
}

// View returns the saved view extent, or nil before the first save.
func (r *LayerRepository) View(ctx context.Context) (*models.MapView, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM project_settings WHERE key = ?`, viewSettingKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read view: %w", err)
	}

	var view models.MapView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, fmt.Errorf("failed to decode view: %w", err)
	}
	return &view, nil
}

// List returns every stored layer in drawing order.
func (r *LayerRepository) List(ctx context.Context) ([]models.LayerSummary, error) {
	rows, err := r.db.QueryContext(ctx, layerSelect+` ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list layers: %w", err)
	}
	defer rows.Close()

	var layers []models.LayerSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan layer: %w", err)
		}
		layers = append(layers, *s)
	}
	return layers, rows.Err()
}

// GetByID returns the stored layer's summary, or layer.ErrLayerNotFound.
func (r *LayerRepository) GetByID(ctx context.Context, id int64) (*models.LayerSummary, error) {
	return r.getSummary(ctx, `WHERE id = ?`, id)
}

// LoadByID returns the stored layer with its features.
func (r *LayerRepository) LoadByID(ctx context.Context, id int64) (layer.Layer, error) {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, s)
}

// Features returns the features of a stored vector layer in feature order.
func (r *LayerRepository) Features(ctx context.Context, id int64) ([]layer.Feature, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT feature_id, geometry, properties_json
		FROM layer_features WHERE layer_id = ? ORDER BY feature_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var features []layer.Feature
	for rows.Next() {
		var f layer.Feature
		var geom, props sql.NullString
		if err := rows.Scan(&f.ID, &geom, &props); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		if geom.Valid {
			g, err := geojson.UnmarshalGeometry([]byte(geom.String))
			if err != nil {
				return nil, fmt.Errorf("failed to decode geometry of feature %d: %w", f.ID, err)
			}
			f.Geometry = g.Geometry()
		}
		if f.Properties, err = decodeProperties(props.String); err != nil {
			return nil, fmt.Errorf("failed to decode properties of feature %d: %w", f.ID, err)
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

const layerSelect = `SELECT id, name, kind, crs, source, style_json, fields_json,
	feature_count, visible, position, updated_at FROM layers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*models.LayerSummary, error) {
	var s models.LayerSummary
	var source, style, fields sql.NullString
	var updated int64
	err := row.Scan(&s.ID, &s.Name, &s.Kind, &s.CRS, &source, &style, &fields,
		&s.FeatureCount, &s.Visible, &s.Position, &updated)
	if err != nil {
		return nil, err
	}
	s.Source = source.String
	s.StyleJSON = style.String
	s.UpdatedAt = time.Unix(updated, 0).UTC()
	if s.StyleJSON != "" {
		var st layer.Style
		if err := json.Unmarshal([]byte(s.StyleJSON), &st); err == nil {
			s.Style = st
		}
	}
	return &s, nil
}

func (r *LayerRepository) getSummary(ctx context.Context, where string, arg any) (*models.LayerSummary, error) {
	s, err := scanSummary(r.db.QueryRowContext(ctx, layerSelect+" "+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", layer.ErrLayerNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get layer: %w", err)
	}
	return s, nil
}

func (r *LayerRepository) load(ctx context.Context, s *models.LayerSummary) (layer.Layer, error) {
	if s.Kind == string(layer.KindRaster) {
		return &layer.Raster{Meta: layer.Meta{Name: s.Name, CRS: s.CRS, Source: s.Source}, URL: s.Source}, nil
	}

	var fields []string
	var raw string
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(fields_json, '') FROM layers WHERE id = ?`, s.ID).Scan(&raw); err != nil {
		return nil, fmt.Errorf("failed to read fields of %s: %w", s.Name, err)
	}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", s.Name, err)
		}
	}

	features, err := r.Features(ctx, s.ID)
	if err != nil {
		return nil, err
	}

	v := layer.NewVector(s.Name, s.CRS, fields...)
	v.Source = s.Source
	if st, ok := s.Style.(layer.Style); ok {
		v.Style = st
	}
	for _, f := range features {
		v.AddFeature(f.Geometry, f.Properties)
	}
	return v, nil
}

// decodeProperties keeps integers as int64 and other numbers as float64.
func decodeProperties(raw string) (map[string]any, error) {
	props := make(map[string]any)
	if raw == "" {
		return props, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&props); err != nil {
		return nil, err
	}
	for k, v := range props {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			props[k] = i
		} else if f, err := n.Float64(); err == nil {
			props[k] = f
		}
	}
	return props, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
