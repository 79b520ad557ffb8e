package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/config"
	"github.com/guaminsects/crbmap/internal/database"
	"github.com/guaminsects/crbmap/internal/pipeline"
	"github.com/guaminsects/crbmap/internal/repository"
)

// extractCmd writes the survey files only
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract tracks, trees and v-cuts from the survey database",
	Long: `Writes one <video>.geojson track per listed video plus trees.csv and
vcuts.csv into the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), false, pipeline.StageExtract)
	},
}

// buildCmd builds the map from files a previous extract wrote
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the damage map from previously extracted files",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), true, buildRun()...)
	},
}

var (
	stageList   []string
	saveRestyle bool
)

// runCmd runs the whole pipeline
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, build, persist and export the damage map",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := fullRun()
		if len(stageList) > 0 {
			names = stageList
		}
		return runStages(cmd.Context(), true, names...)
	},
}

// restyleCmd reclassifies and re-exports the stored map without the survey
var restyleCmd = &cobra.Command{
	Use:   "restyle",
	Short: "Restyle and re-export the stored damage map",
	Long: `Reads the tracks, trees, vcuts and mean_damage_index layers of the last
persisted build from the project store, applies the damage legend again and
writes the map files. The survey database is not opened.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd.Context(), saveRestyle, restyleRun(saveRestyle)...)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&stageList, "stages", nil,
		"stages to run in order instead of the full build ("+strings.Join(pipeline.StageNames(), ", ")+")")
	restyleCmd.Flags().BoolVar(&saveRestyle, "save", false, "persist the restyled project back to the store")
}

func buildRun() []string {
	return append(append([]string(nil), pipeline.BuildStages...), pipeline.StagePersist, pipeline.StageExport)
}

func restyleRun(save bool) []string {
	names := append([]string(nil), pipeline.RestyleStages...)
	if save {
		names = append(names, pipeline.StagePersist)
	}
	return append(names, pipeline.StageExport)
}

func fullRun() []string {
	return append(append([]string(nil), pipeline.FullStages...), pipeline.StagePersist, pipeline.StageExport)
}

// openStore opens the project store, creating its directory.
func openStore(cfg *config.Config) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return database.Open(database.Config{Path: cfg.DBPath}, logger)
}

// needsParameters reports whether any of the stages reads the survey
// parameters.
func needsParameters(names []string) bool {
	return slices.Contains(names, pipeline.StageExtract) || slices.Contains(names, pipeline.StageLoad)
}

// newBuilder returns a function running the named stages against db.
// The parameters file is read on every call so edits apply to the next
// scheduled rebuild.
func newBuilder(cfg *config.Config, db *sql.DB, persist bool, names ...string) func(ctx context.Context, runID string) error {
	return func(ctx context.Context, runID string) error {
		var params *config.Parameters
		if needsParameters(names) {
			var err error
			if params, err = config.LoadParameters(cfg.ParamsFile); err != nil {
				return err
			}
			logger.Debug("Survey parameters", zap.String("params", params.Redacted()))
		}

		opts := pipeline.OptionsFromConfig(cfg, params, logger)
		opts.Store = repository.NewLayerRepository(db)
		if persist {
			opts.Projects = repository.NewLayerRepository(db)
			opts.Cells = repository.NewGridRepository(db)
		}

		runner, err := pipeline.NewRunnerFromNames(opts, repository.NewRunRepository(db), names...)
		if err != nil {
			return err
		}

		st := pipeline.NewState()
		st.RunID = runID
		report, err := runner.Run(ctx, st)
		if err != nil {
			return err
		}
		logger.Info("Map build finished",
			zap.String("run_id", report.RunID),
			zap.Int("stages", len(report.Stages)),
			zap.Int("cells", len(st.Cells)),
			zap.String("output", cfg.OutputDir),
		)
		return nil
	}
}

func runStages(ctx context.Context, persist bool, names ...string) error {
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return newBuilder(cfg, db, persist, names...)(ctx, "")
}
