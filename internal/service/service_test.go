package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guaminsects/crbmap/internal/database"
	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "project.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCells(t *testing.T, db *sql.DB) {
	t.Helper()
	means := map[int64]float64{1: 0, 2: 0.5, 3: 2.0, 4: 3.7, 5: 2.2}
	var cells []models.AggregatedCell
	for id := int64(1); id <= 5; id++ {
		cells = append(cells, models.AggregatedCell{
			GridCell:   models.GridCell{ID: id, Col: int(id - 1)},
			DamageMean: means[id],
			PointCount: int(id),
		})
	}
	require.NoError(t, repository.NewGridRepository(db).ReplaceCells(context.Background(), "run-1", cells))
}

func cellIDs(cells []models.AggregatedCell) []int64 {
	ids := make([]int64, len(cells))
	for i, c := range cells {
		ids[i] = c.ID
	}
	return ids
}

func TestGridServiceLabelsCells(t *testing.T) {
	db := newTestDB(t)
	seedCells(t, db)
	svc := NewGridService(repository.NewGridRepository(db), nil)

	cells, err := svc.GetGridCells(context.Background(), models.GridFilter{})
	require.NoError(t, err)
	require.Equal(t, []int64{4, 5, 3, 2, 1}, cellIDs(cells))
	assert.Equal(t, "3.5 - 4.0", cells[0].Class)
	assert.Equal(t, "#ff0000", cells[0].Color)
	assert.Equal(t, "No damage", cells[4].Class)

	cell, err := svc.GetGridCellByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "0.0 - 0.5", cell.Class)
	assert.Equal(t, "#00ff00", cell.Color)

	cell, err = svc.GetGridCellByID(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, cell)
}

func TestGridServiceClassFilter(t *testing.T) {
	db := newTestDB(t)
	seedCells(t, db)
	svc := NewGridService(repository.NewGridRepository(db), nil)
	ctx := context.Background()

	cells, err := svc.GetGridCells(ctx, models.GridFilter{Class: "1.5 - 2.5"})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 3}, cellIDs(cells))

	cells, err = svc.GetGridCells(ctx, models.GridFilter{Class: "1.5 - 2.5", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, cellIDs(cells))

	_, err = svc.GetGridCells(ctx, models.GridFilter{Class: "5.0 - 6.0"})
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestGridServiceLegend(t *testing.T) {
	db := newTestDB(t)
	seedCells(t, db)
	svc := NewGridService(repository.NewGridRepository(db), nil)

	doc, err := svc.Legend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mean_damage_index", doc.Layer)
	require.Len(t, doc.Bins, 6)

	counts := map[string]int{}
	for _, b := range doc.Bins {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, map[string]int{
		"No damage": 1,
		"0.0 - 0.5": 1,
		"0.5 - 1.5": 0,
		"1.5 - 2.5": 2,
		"2.5 - 3.5": 0,
		"3.5 - 4.0": 1,
	}, counts)
	assert.Zero(t, doc.Unclassified)
	assert.Equal(t, 5, doc.Summary.Count)

	bin, ok := svc.Classify(0.5)
	require.True(t, ok)
	assert.Equal(t, "0.0 - 0.5", bin.Label)
}

func TestLayerServiceGeoJSON(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := layer.NewProject()
	p.Add(&layer.Raster{Meta: layer.Meta{Name: "Guam", CRS: "EPSG:3857"}, URL: "https://a.tile.openstreetmap.org/{z}/{x}/{y}.png"})
	trees := layer.NewVector("trees", "EPSG:3857")
	trees.AddFeature(orb.Point{16113719, 1514133}, map[string]any{"damage": 2.0})
	p.Add(trees)
	require.NoError(t, repository.NewLayerRepository(db).SaveProject(ctx, p))

	svc := NewLayerService(repository.NewLayerRepository(db))
	layers, err := svc.ListLayers(ctx)
	require.NoError(t, err)
	require.Len(t, layers, 2)

	_, err = svc.GetLayerGeoJSON(ctx, layers[0].ID)
	assert.ErrorIs(t, err, ErrRasterLayer)

	fc, err := svc.GetLayerGeoJSON(ctx, layers[1].ID)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	pt := fc.Features[0].Geometry.(orb.Point)
	assert.InDelta(t, 144.75, pt.Lon(), 0.01)
	assert.InDelta(t, 13.47, pt.Lat(), 0.01)

	_, err = svc.GetLayerGeoJSON(ctx, 999)
	assert.ErrorIs(t, err, layer.ErrLayerNotFound)
}

func TestRunServiceSerialisesRebuilds(t *testing.T) {
	db := newTestDB(t)
	release := make(chan struct{})
	var got []string
	svc := NewRunService(repository.NewRunRepository(db), func(ctx context.Context, runID string) error {
		got = append(got, runID)
		<-release
		return nil
	}, nil)
	defer svc.Close()

	runID, err := svc.StartRebuild()
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	_, err = svc.StartRebuild()
	assert.ErrorIs(t, err, ErrRebuildInProgress)
	_, err = svc.Rebuild(context.Background())
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	close(release)
	svc.Wait()
	assert.Equal(t, []string{runID}, got)

	second, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, runID, second)
}

func TestRunServiceErrors(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewRunRepository(db)

	_, err := NewRunService(repo, nil, nil).StartRebuild()
	assert.ErrorIs(t, err, ErrRebuildDisabled)

	boom := errors.New("survey database unreachable")
	svc := NewRunService(repo, func(context.Context, string) error { return boom }, nil)
	_, err = svc.Rebuild(context.Background())
	assert.ErrorIs(t, err, boom)

	runs, err := svc.ListRuns(context.Background(), models.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunServiceLatestRun(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewRunRepository(newTestDB(t))
	svc := NewRunService(repo, nil, nil)

	_, _, err := svc.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNoRuns)

	require.NoError(t, repo.Create(ctx, &models.PipelineRun{RunID: "old", Stage: "extract"}))
	require.NoError(t, repo.Create(ctx, &models.PipelineRun{RunID: "new", Stage: "extract"}))
	require.NoError(t, repo.Create(ctx, &models.PipelineRun{RunID: "new", Stage: "load"}))

	runID, stages, err := svc.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", runID)
	require.Len(t, stages, 2)
	assert.Equal(t, "load", stages[0].Stage)
}
