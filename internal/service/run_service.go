package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/logging"
	"github.com/guaminsects/crbmap/internal/models"
	"github.com/guaminsects/crbmap/internal/repository"
)

// ErrRebuildInProgress is returned when a rebuild is requested while one
// is running.
var ErrRebuildInProgress = errors.New("a rebuild is already running")

// ErrNoRuns is returned when no pipeline run has been recorded yet.
var ErrNoRuns = errors.New("no pipeline runs recorded")

// ErrRebuildDisabled is returned when no rebuild function is configured.
var ErrRebuildDisabled = errors.New("rebuilds are not enabled")

// Rebuilder rebuilds and persists the map under the given run ID.
type Rebuilder func(ctx context.Context, runID string) error

// RunService lists pipeline runs and serialises rebuilds
type RunService struct {
	repo    *repository.RunRepository
	rebuild Rebuilder
	logger  *zap.Logger

	mu     sync.Mutex // held for the duration of a rebuild
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunService creates a new run service. rebuild may be nil.
func NewRunService(repo *repository.RunRepository, rebuild Rebuilder, logger *zap.Logger) *RunService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunService{
		repo:    repo,
		rebuild: rebuild,
		logger:  logging.Component(logger, "runs"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ListRuns returns stage records, newest first
func (s *RunService) ListRuns(ctx context.Context, filter models.RunFilter) ([]*models.PipelineRun, error) {
	return s.repo.List(ctx, filter)
}

// LatestRun returns the stage records of the most recent run, newest stage
// first.
func (s *RunService) LatestRun(ctx context.Context) (string, []*models.PipelineRun, error) {
	runID, err := s.repo.LatestRunID(ctx)
	if err != nil {
		return "", nil, err
	}
	if runID == "" {
		return "", nil, ErrNoRuns
	}
	stages, err := s.repo.List(ctx, models.RunFilter{RunID: runID})
	return runID, stages, err
}

// Rebuild runs a rebuild synchronously and returns its run ID.
func (s *RunService) Rebuild(ctx context.Context) (string, error) {
	if s.rebuild == nil {
		return "", ErrRebuildDisabled
	}
	if !s.mu.TryLock() {
		return "", ErrRebuildInProgress
	}
	defer s.mu.Unlock()

	runID := uuid.NewString()
	return runID, s.run(ctx, runID)
}

// StartRebuild starts a rebuild in the background and returns its run ID
// at once. Its progress is visible through ListRuns.
func (s *RunService) StartRebuild() (string, error) {
	if s.rebuild == nil {
		return "", ErrRebuildDisabled
	}
	if !s.mu.TryLock() {
		return "", ErrRebuildInProgress
	}

	runID := uuid.NewString()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()
		_ = s.run(s.ctx, runID)
	}()
	return runID, nil
}

func (s *RunService) run(ctx context.Context, runID string) error {
	logger := s.logger.With(zap.String("run_id", runID))
	logger.Info("Rebuild started")
	if err := s.rebuild(ctx, runID); err != nil {
		logger.Error("Rebuild failed", zap.Error(err))
		return err
	}
	logger.Info("Rebuild finished")
	return nil
}

// Wait blocks until background rebuilds have returned.
func (s *RunService) Wait() {
	s.wg.Wait()
}

// Close cancels background rebuilds and waits for them.
func (s *RunService) Close() {
	s.cancel()
	s.wg.Wait()
}
