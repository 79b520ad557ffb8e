package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/guaminsects/crbmap/internal/export"
	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/repository"
)

// ErrRasterLayer is returned when GeoJSON is asked of a tile layer.
var ErrRasterLayer = errors.New("raster layers have no features")

// LayerService handles business logic for stored map layers
type LayerService struct {
	repo *repository.LayerRepository
}

// NewLayerService creates a new layer service
func NewLayerService(repo *repository.LayerRepository) *LayerService {
	return &LayerService{repo: repo}
}

// ListLayers returns the stored layers in drawing order
func (s *LayerService) ListLayers(ctx context.Context) ([]models.LayerSummary, error) {
	return s.repo.List(ctx)
}

// View returns the saved map view, nil before the first build
func (s *LayerService) View(ctx context.Context) (*models.MapView, error) {
	return s.repo.View(ctx)
}

// GetLayer returns one layer summary
func (s *LayerService) GetLayer(ctx context.Context, id int64) (*models.LayerSummary, error) {
	return s.repo.GetByID(ctx, id)
}

// GetLayerGeoJSON returns a stored vector layer as an EPSG:4326
// FeatureCollection.
func (s *LayerService) GetLayerGeoJSON(ctx context.Context, id int64) (*geojson.FeatureCollection, error) {
	l, err := s.repo.LoadByID(ctx, id)
	if err != nil {
		return nil, err
	}

	v, ok := l.(*layer.Vector)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRasterLayer, l.Info().Name)
	}
	return export.FeatureCollection(v)
}
