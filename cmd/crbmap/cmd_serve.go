package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/guaminsects/crbmap/internal/api"
	"github.com/guaminsects/crbmap/internal/handler"
	"github.com/guaminsects/crbmap/internal/repository"
	"github.com/guaminsects/crbmap/internal/scheduler"
	"github.com/guaminsects/crbmap/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	rebuildTimeout  = 30 * time.Minute
	rebuildJob      = "rebuild"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stored damage map over HTTP",
	Long: `Serves the persisted layers, the aggregated grid, the legend and the
pipeline run log. POST /api/v1/runs and REBUILD_SCHEDULE trigger a rebuild.`,
	RunE: serve,
}

func serve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	layers := repository.NewLayerRepository(db)
	grid := repository.NewGridRepository(db)
	runRepo := repository.NewRunRepository(db)

	runs := service.NewRunService(runRepo, newBuilder(cfg, db, true, fullRun()...), logger)
	defer runs.Close()

	if logger.Core().Enabled(zap.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(cfg, api.Handlers{
		Layers: handler.NewLayerHandler(service.NewLayerService(layers)),
		Grid:   handler.NewGridHandler(service.NewGridService(grid, nil)),
		Runs:   handler.NewRunHandler(runs),
	}, logger)

	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sched *scheduler.CronScheduler
	if cfg.RebuildSchedule != "" {
		sched = scheduler.NewCronScheduler(rebuildTimeout, logger)
		err := sched.Schedule(rebuildJob, cfg.RebuildSchedule, func(ctx context.Context) error {
			_, err := runs.Rebuild(ctx)
			if errors.Is(err, service.ErrRebuildInProgress) {
				logger.Warn("Skipping scheduled rebuild, one is already running")
				return nil
			}
			return err
		})
		if err != nil {
			return err
		}
		if next, ok := sched.Next(rebuildJob); ok {
			logger.Info("Scheduled rebuild enabled", zap.String("spec", cfg.RebuildSchedule), zap.Time("next", next))
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if sched != nil {
			errs = append(errs, sched.Stop(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}
