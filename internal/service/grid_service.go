package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/guaminsects/crbmap/internal/export"
	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/processing"
	"github.com/guaminsects/crbmap/internal/repository"
	"github.com/guaminsects/crbmap/internal/symbology"
)

// ErrUnknownClass is returned for a class filter that names no legend bin.
var ErrUnknownClass = errors.New("unknown damage class")

// Layer and field the stored cells belong to.
const (
	cellsLayer = "mean_damage_index"
	cellsField = "damage"
)

// GridService handles business logic for aggregated grid cells
type GridService struct {
	repo   *repository.GridRepository
	legend symbology.Legend
}

// NewGridService creates a new grid service. A nil legend means the
// default damage legend.
func NewGridService(repo *repository.GridRepository, legend symbology.Legend) *GridService {
	if legend == nil {
		legend = symbology.DefaultLegend
	}
	return &GridService{repo: repo, legend: legend}
}

// GetGridCells retrieves grid cells with filtering, each labelled with its
// legend class.
func (s *GridService) GetGridCells(ctx context.Context, filter models.GridFilter) ([]models.AggregatedCell, error) {
	if filter.Class == "" {
		cells, err := s.repo.GetGridCells(ctx, filter)
		if err != nil {
			return nil, err
		}
		for i := range cells {
			s.label(&cells[i])
		}
		return cells, nil
	}

	if !s.hasClass(filter.Class) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, filter.Class)
	}

	// The class is not stored, so filter before applying the limit.
	limit := filter.Limit
	filter.Limit = 0
	cells, err := s.repo.GetGridCells(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := cells[:0]
	for _, c := range cells {
		s.label(&c)
		if c.Class != filter.Class {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetGridCellByID retrieves a single grid cell; nil if there is none.
func (s *GridService) GetGridCellByID(ctx context.Context, id int64) (*models.AggregatedCell, error) {
	c, err := s.repo.GetGridCellByID(ctx, id)
	if err != nil || c == nil {
		return c, err
	}
	s.label(c)
	return c, nil
}

// Legend returns the legend with per-class cell counts and damage
// statistics of the stored cells.
func (s *GridService) Legend(ctx context.Context) (export.LegendDocument, error) {
	values, err := s.repo.Damages(ctx)
	if err != nil {
		return export.LegendDocument{}, err
	}
	return export.NewLegendDocument(cellsLayer, processing.MeanField(cellsField), s.legend, values), nil
}

// Classify returns the legend bin holding v.
func (s *GridService) Classify(v float64) (symbology.Bin, bool) {
	return s.legend.Classify(v)
}

func (s *GridService) label(c *models.AggregatedCell) {
	if b, ok := s.legend.Classify(c.DamageMean); ok {
		c.Class = b.Label
		c.Color = b.Color
	}
}

func (s *GridService) hasClass(label string) bool {
	for _, b := range s.legend {
		if b.Label == label {
			return true
		}
	}
	return false
}
