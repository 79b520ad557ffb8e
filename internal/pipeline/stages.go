package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/export"
	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/processing"
	"github.com/guaminsects/crbmap/internal/spatial"
	"github.com/guaminsects/crbmap/internal/stats"
	"github.com/guaminsects/crbmap/internal/survey"
	"github.com/guaminsects/crbmap/internal/symbology"
)

// Stage names.
const (
	StageExtract   = "extract"
	StageRestore   = "restore"
	StageLoad      = "load"
	StageAggregate = "aggregate"
	StageStyle     = "style"
	StageCleanup   = "cleanup"
	StagePersist   = "persist"
	StageExport    = "export"
)

// Exported map file names under <output>/map.
const (
	MapDir     = "map"
	LegendFile = "legend.json"
	CellsFile  = "mean_damage_index.xlsx"
)

// FieldLength is the track length in metres, added before merging.
const FieldLength = "length_m"

var (
	errNoParameters = errors.New("survey parameters are required")
	errNoStore      = errors.New("no project store configured")
)

func init() {
	RegisterStage(StageExtract, func(o *Options) Stage { return &extractStage{opts: o} })
	RegisterStage(StageRestore, func(o *Options) Stage { return &restoreStage{opts: o} })
	RegisterStage(StageLoad, func(o *Options) Stage { return &loadStage{opts: o} })
	RegisterStage(StageAggregate, func(o *Options) Stage { return &aggregateStage{opts: o} })
	RegisterStage(StageStyle, func(o *Options) Stage { return &styleStage{opts: o} })
	RegisterStage(StageCleanup, func(o *Options) Stage { return &cleanupStage{opts: o} })
	RegisterStage(StagePersist, func(o *Options) Stage { return &persistStage{opts: o} })
	RegisterStage(StageExport, func(o *Options) Stage { return &exportStage{opts: o} })
}

// extractStage pulls tracks, trees and vcuts out of the survey database.
type extractStage struct{ opts *Options }

func (s *extractStage) Name() string { return StageExtract }

func (s *extractStage) Run(ctx context.Context, st *State) (any, error) {
	params := s.opts.Params
	if params == nil {
		return nil, errNoParameters
	}

	db, err := s.opts.OpenSurvey(ctx, params)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	res, err := survey.NewExtractorFromParameters(db, params, s.opts.Logger).Extract(ctx, params.VideoList, s.opts.OutputDir)
	if err != nil {
		return nil, err
	}
	st.Extract = res
	return res, nil
}

// loadStage adds the base map, the tracks, trees and vcuts to the project.
// Per-video tracks are merged and simplified into the tracks layer; trees
// are reprojected to Web Mercator for the join.
type loadStage struct{ opts *Options }

func (s *loadStage) Name() string { return StageLoad }

func (s *loadStage) Run(ctx context.Context, st *State) (any, error) {
	p := st.Project
	loader := layer.NewLoader(s.opts.Logger)

	var err error
	st.BaseMap, err = loader.LoadBaseMap(p, BaseMapLayer, s.opts.BaseMapURL, spatial.CRSWebMercator, s.opts.ViewExtent)
	if err != nil {
		return nil, err
	}

	paths, err := s.trackPaths(st)
	if err != nil {
		return nil, err
	}
	if st.TrackLayers, err = loader.LoadTrackFiles(p, paths); err != nil {
		return nil, err
	}

	tracks := make([]*layer.Vector, 0, len(st.TrackLayers))
	for _, id := range st.TrackLayers {
		v, err := p.Vector(id)
		if err != nil {
			return nil, err
		}
		for i, f := range v.Features {
			v.Features[i].Properties[FieldLength] = spatial.GeometryLengthMeters(f.Geometry)
		}
		tracks = append(tracks, v)
	}

	merged, err := processing.MergeVectorLayers(MergedLayer, tracks, spatial.CRSWebMercator)
	if err != nil {
		return nil, err
	}
	st.Merged = p.Add(merged)
	st.Tracks = p.Add(processing.SimplifyGeometries(TracksLayer, merged, s.opts.SimplifyTolerance))

	dir := s.opts.OutputDir
	rawTrees, err := loader.LoadPointsCSV(p, TreesLayer, filepath.Join(dir, survey.TreesFile), pointOptions())
	if err != nil {
		return nil, err
	}
	raw, err := p.Vector(rawTrees)
	if err != nil {
		return nil, err
	}
	trees, err := processing.ReprojectLayer(TreesLayer, raw, spatial.CRSWebMercator)
	if err != nil {
		return nil, err
	}
	if err := p.Remove(rawTrees); err != nil {
		return nil, err
	}
	st.Trees = p.Add(trees)

	if st.Cuts, err = loader.LoadPointsCSV(p, CutsLayer, filepath.Join(dir, survey.CutsFile), pointOptions()); err != nil {
		return nil, err
	}
	cuts, _ := p.Vector(st.Cuts)

	return map[string]int{
		"tracks": len(tracks),
		"trees":  len(trees.Features),
		"vcuts":  len(cuts.Features),
	}, nil
}

// trackPaths returns the files the extract stage wrote, or, when building
// from an earlier extract, the files the video list names.
func (s *loadStage) trackPaths(st *State) ([]string, error) {
	if st.Extract != nil {
		return st.Extract.TrackFiles, nil
	}

	params := s.opts.Params
	if params == nil {
		return nil, errNoParameters
	}
	paths, err := survey.TrackFiles(s.opts.OutputDir, params.VideoList)
	if err != nil {
		return nil, err
	}
	if !params.SkipMissingVideos {
		return paths, nil
	}

	found := paths[:0]
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			s.opts.Logger.Warn("Skipping missing track file", zap.String("path", path))
			continue
		}
		found = append(found, path)
	}
	return found, nil
}

func pointOptions() layer.CSVOptions {
	return layer.CSVOptions{XField: "lon", YField: "lat", CRS: spatial.CRSWGS84}
}

// restoreStage reads the layers of an earlier persisted build back into
// the project, so a map can be restyled and exported without the survey.
type restoreStage struct{ opts *Options }

func (s *restoreStage) Name() string { return StageRestore }

func (s *restoreStage) Run(ctx context.Context, st *State) (any, error) {
	if s.opts.Store == nil {
		return nil, errNoStore
	}

	ids, err := layer.NewLoader(s.opts.Logger).LoadFromStore(ctx, s.opts.Store, st.Project, RestoredLayers...)
	if err != nil {
		return nil, err
	}
	st.BaseMap, st.Tracks, st.Trees, st.Cuts, st.Aggregate = ids[0], ids[1], ids[2], ids[3], ids[4]

	agg, err := st.Project.Vector(st.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("aggregate layer: %w", err)
	}
	st.Cells, err = processing.CellsFromLayer(agg, processing.MeanField(DamageField), processing.CountField(DamageField))
	if err != nil {
		return nil, err
	}
	st.Summary = summarizeCells(st.Cells)

	return map[string]any{"layers": st.Project.Len(), "cells": len(st.Cells), "damage": st.Summary}, nil
}

// aggregateStage builds the grid and joins mean tree damage onto it.
type aggregateStage struct{ opts *Options }

func (s *aggregateStage) Name() string { return StageAggregate }

func (s *aggregateStage) Run(ctx context.Context, st *State) (any, error) {
	p := st.Project

	trees, err := p.Vector(st.Trees)
	if err != nil {
		return nil, fmt.Errorf("trees layer: %w", err)
	}

	grid, err := processing.CreateGrid(GridLayer, s.opts.GridExtent, s.opts.GridHSpacing, s.opts.GridVSpacing, spatial.CRSWebMercator)
	if err != nil {
		return nil, err
	}
	st.Grid = p.Add(grid)

	agg, js, err := processing.JoinByLocationMean(AggregateLayer, grid, trees, DamageField)
	if err != nil {
		return nil, err
	}
	st.Aggregate = p.Add(agg)
	st.Join = js
	if js.SkippedPoints > 0 {
		s.opts.Logger.Warn("Trees without a damage score skipped", zap.Int("skipped", js.SkippedPoints))
	}

	st.Cells, err = processing.CellsFromLayer(agg, processing.MeanField(DamageField), processing.CountField(DamageField))
	if err != nil {
		return nil, err
	}

	st.Summary = summarizeCells(st.Cells)

	return map[string]any{"join": js, "damage": st.Summary}, nil
}

// styleStage applies the damage legend to the aggregated layer.
type styleStage struct{ opts *Options }

func (s *styleStage) Name() string { return StageStyle }

func (s *styleStage) Run(ctx context.Context, st *State) (any, error) {
	agg, err := st.Project.Vector(st.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("aggregate layer: %w", err)
	}

	field := processing.MeanField(DamageField)
	if err := symbology.Apply(agg, field, s.opts.Legend); err != nil {
		return nil, err
	}

	for i, c := range st.Cells {
		if b, ok := s.opts.Legend.Classify(c.DamageMean); ok {
			st.Cells[i].Class = b.Label
			st.Cells[i].Color = b.Color
		}
	}
	return symbology.Counts(agg, field, s.opts.Legend), nil
}

// cleanupStage drops the helper layers, styles what is left and zooms the
// view to the aggregated layer.
type cleanupStage struct{ opts *Options }

func (s *cleanupStage) Name() string { return StageCleanup }

func (s *cleanupStage) Run(ctx context.Context, st *State) (any, error) {
	p := st.Project

	if agg, err := p.Vector(st.Aggregate); err == nil {
		if b, ok := agg.Bound(); ok {
			p.SetView(b, agg.CRS)
		}
	}

	removed := 0
	helpers := append([]layer.ID{st.Grid, st.Merged}, st.TrackLayers...)
	for _, id := range helpers {
		if id == 0 {
			continue
		}
		if err := p.Remove(id); err != nil {
			return nil, err
		}
		removed++
	}
	st.Grid, st.Merged, st.TrackLayers = 0, 0, nil

	styles := []struct {
		id    layer.ID
		color string
		width float64
	}{
		{st.Tracks, TrackColor, TrackWidth},
		{st.Trees, TreeColor, 0},
		{st.Cuts, CutColor, 0},
	}
	for _, sty := range styles {
		if sty.id == 0 {
			continue
		}
		v, err := p.Vector(sty.id)
		if err != nil {
			return nil, err
		}
		v.SetSingleStyle(sty.color, sty.width)
	}

	return map[string]int{"removed": removed, "layers": p.Len()}, nil
}

// persistStage saves the project and the aggregated cells to the store.
type persistStage struct{ opts *Options }

func (s *persistStage) Name() string { return StagePersist }

func (s *persistStage) Run(ctx context.Context, st *State) (any, error) {
	if s.opts.Projects == nil && s.opts.Cells == nil {
		return nil, errNoStore
	}
	if s.opts.Projects != nil {
		if err := s.opts.Projects.SaveProject(ctx, st.Project); err != nil {
			return nil, err
		}
	}
	if s.opts.Cells != nil {
		if err := s.opts.Cells.ReplaceCells(ctx, st.RunID, st.Cells); err != nil {
			return nil, err
		}
	}
	return map[string]int{"layers": st.Project.Len(), "cells": len(st.Cells)}, nil
}

// exportStage writes the map files under <output>/map.
type exportStage struct{ opts *Options }

func (s *exportStage) Name() string { return StageExport }

func (s *exportStage) Run(ctx context.Context, st *State) (any, error) {
	dir := filepath.Join(s.opts.OutputDir, MapDir)

	files, err := export.WriteLayers(dir, st.Project)
	if err != nil {
		return nil, err
	}

	doc := export.NewLegendDocument(AggregateLayer, processing.MeanField(DamageField), s.opts.Legend, cellMeans(st.Cells))
	legendPath := filepath.Join(dir, LegendFile)
	if err := export.WriteLegend(legendPath, doc); err != nil {
		return nil, err
	}

	cellsPath := filepath.Join(dir, CellsFile)
	if err := export.WriteCellsXLSX(cellsPath, st.Cells, s.opts.Legend); err != nil {
		return nil, err
	}

	return map[string]any{"layers": files, "legend": legendPath, "cells": cellsPath}, nil
}

func cellMeans(cells []models.AggregatedCell) []float64 {
	means := make([]float64, len(cells))
	for i, c := range cells {
		means[i] = c.DamageMean
	}
	return means
}

func summarizeCells(cells []models.AggregatedCell) stats.Summary {
	return stats.Summarize(cellMeans(cells))
}
