package pipeline

import (
	"context"
	"database/sql"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/config"
	"github.com/guaminsects/crbmap/internal/layer"
	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/processing"
	"github.com/guaminsects/crbmap/internal/stats"
	"github.com/guaminsects/crbmap/internal/survey"
	"github.com/guaminsects/crbmap/internal/symbology"
)

// Layer names shown in the finished map.
const (
	BaseMapLayer   = "Guam"
	TracksLayer    = "tracks"
	MergedLayer    = "Merged"
	TreesLayer     = "trees"
	CutsLayer      = "vcuts"
	GridLayer      = "grid"
	AggregateLayer = "mean_damage_index"
)

// DamageField is the tree attribute averaged per grid cell.
const DamageField = "damage"

// Default layer colours.
const (
	TrackColor = "#ff0000"
	TreeColor  = "#00ff00"
	CutColor   = "#ff00ff"
	TrackWidth = 1.0
)

// Default stage order of a full build, and of a restyle of the stored map.
var (
	BuildStages   = []string{StageLoad, StageAggregate, StageStyle, StageCleanup}
	FullStages    = append([]string{StageExtract}, BuildStages...)
	RestyleStages = []string{StageRestore, StageStyle, StageCleanup}
)

// RestoredLayers are read back from the store by the restore stage, in
// drawing order.
var RestoredLayers = []string{BaseMapLayer, TracksLayer, TreesLayer, CutsLayer, AggregateLayer}

// ProjectStore persists the finished project.
type ProjectStore interface {
	SaveProject(ctx context.Context, p *layer.Project) error
}

// CellStore persists the aggregated cells.
type CellStore interface {
	ReplaceCells(ctx context.Context, runID string, cells []models.AggregatedCell) error
}

// Options configure a build. Zero values fall back to the Guam defaults.
type Options struct {
	Params    *config.Parameters
	OutputDir string

	BaseMapURL        string
	ViewExtent        orb.Bound // EPSG:3857
	GridExtent        orb.Bound // EPSG:3857
	GridHSpacing      float64
	GridVSpacing      float64
	SimplifyTolerance float64
	Legend            symbology.Legend

	// OpenSurvey connects to the survey database; survey.Open by default.
	OpenSurvey func(ctx context.Context, params *config.Parameters) (*sql.DB, error)

	Projects ProjectStore // optional, used by the persist stage
	Cells    CellStore    // optional, used by the persist stage
	Store    layer.Store  // optional, read by the restore stage

	Logger *zap.Logger
}

// ExtentBound converts a configured extent to an orb bound.
func ExtentBound(e config.Extent) orb.Bound {
	return orb.Bound{Min: orb.Point{e.MinX, e.MinY}, Max: orb.Point{e.MaxX, e.MaxY}}
}

// OptionsFromConfig builds options from the application config.
func OptionsFromConfig(cfg *config.Config, params *config.Parameters, logger *zap.Logger) *Options {
	opts := &Options{
		Params:            params,
		OutputDir:         cfg.OutputDir,
		BaseMapURL:        cfg.BaseMapURL,
		ViewExtent:        ExtentBound(config.GuamExtent),
		GridExtent:        ExtentBound(cfg.GridExtent),
		GridHSpacing:      cfg.GridHSpacing,
		GridVSpacing:      cfg.GridVSpacing,
		SimplifyTolerance: cfg.SimplifyTolerance,
		Logger:            logger,
	}
	opts.setDefaults()
	return opts
}

func (o *Options) setDefaults() {
	if o.OutputDir == "" {
		o.OutputDir = config.DefaultOutputDir
	}
	if o.BaseMapURL == "" {
		o.BaseMapURL = config.DefaultBaseMapURL
	}
	if o.ViewExtent.IsZero() {
		o.ViewExtent = ExtentBound(config.GuamExtent)
	}
	if o.GridExtent.IsZero() {
		o.GridExtent = ExtentBound(config.GuamExtent)
	}
	if o.GridHSpacing <= 0 {
		o.GridHSpacing = config.DefaultGridSpacing
	}
	if o.GridVSpacing <= 0 {
		o.GridVSpacing = config.DefaultGridSpacing
	}
	if o.SimplifyTolerance <= 0 {
		o.SimplifyTolerance = config.DefaultSimplifyTol
	}
	if o.Legend == nil {
		o.Legend = symbology.DefaultLegend
	}
	if o.OpenSurvey == nil {
		o.OpenSurvey = survey.Open
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// State is what the stages hand to each other: the project and the
// handles of the layers each stage produced.
type State struct {
	RunID   string
	Project *layer.Project

	Extract *survey.Result

	BaseMap     layer.ID
	TrackLayers []layer.ID // one per video, removed by cleanup
	Merged      layer.ID   // merge scratch layer, removed by cleanup
	Tracks      layer.ID
	Trees       layer.ID // EPSG:3857
	Cuts        layer.ID
	Grid        layer.ID // removed by cleanup
	Aggregate   layer.ID

	Join    processing.JoinStats
	Cells   []models.AggregatedCell
	Summary stats.Summary
}

// NewState returns a state with an empty project.
func NewState() *State {
	return &State{Project: layer.NewProject()}
}
