// Package pipeline runs the damage map build as a fixed sequence of
// stages over one explicit map project.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/logging"
	"github.com/guaminsects/crbmap/internal/models"
)

// Stage is one step of the build.
type Stage interface {
	// Name is the stage name recorded in pipeline_runs.
	Name() string

	// Run mutates st and returns a summary to record with the stage.
	Run(ctx context.Context, st *State) (any, error)
}

// StageFactory creates a stage from the build options.
type StageFactory func(opts *Options) Stage

// stageRegistry maps stage names to factories
var stageRegistry = make(map[string]StageFactory)

// RegisterStage registers a stage factory under name
func RegisterStage(name string, factory StageFactory) {
	stageRegistry[name] = factory
}

// NewStage creates the named stage
func NewStage(name string, opts *Options) (Stage, error) {
	factory, ok := stageRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown pipeline stage %q", name)
	}
	opts.setDefaults()
	return factory(opts), nil
}

// StageNames lists the registered stages
func StageNames() []string {
	names := make([]string, 0, len(stageRegistry))
	for name := range stageRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunRecorder stores stage progress. *repository.RunRepository satisfies it.
type RunRecorder interface {
	Create(ctx context.Context, run *models.PipelineRun) error
	MarkAsCompleted(ctx context.Context, id int64, summary string) error
	MarkAsFailed(ctx context.Context, id int64, errorMessage string) error
}

// StageReport is the outcome of one stage.
type StageReport struct {
	Stage    string        `json:"stage"`
	Status   string        `json:"status"`
	Summary  any           `json:"summary,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report is the outcome of a run.
type Report struct {
	RunID  string        `json:"run_id"`
	Stages []StageReport `json:"stages"`
}

// Runner executes stages strictly in order; the first failure stops the run.
type Runner struct {
	stages   []Stage
	recorder RunRecorder
	logger   *zap.Logger
}

// NewRunner creates a runner. recorder may be nil.
func NewRunner(logger *zap.Logger, recorder RunRecorder, stages ...Stage) *Runner {
	return &Runner{
		stages:   stages,
		recorder: recorder,
		logger:   logging.Component(logger, "pipeline"),
	}
}

// NewRunnerFromNames creates a runner over the named registered stages.
func NewRunnerFromNames(opts *Options, recorder RunRecorder, names ...string) (*Runner, error) {
	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		s, err := NewStage(name, opts)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return NewRunner(opts.Logger, recorder, stages...), nil
}

// Run executes every stage against st. st.RunID is assigned if empty.
func (r *Runner) Run(ctx context.Context, st *State) (*Report, error) {
	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}
	report := &Report{RunID: st.RunID}
	logger := r.logger.With(zap.String("run_id", st.RunID))
	logger.Info("Pipeline started", zap.Int("stages", len(r.stages)))

	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("pipeline cancelled before %s: %w", stage.Name(), err)
		}

		run := &models.PipelineRun{RunID: st.RunID, Stage: stage.Name(), Status: models.RunStatusRunning}
		r.record(logger, func() error { return r.recorder.Create(ctx, run) })

		start := time.Now()
		summary, err := stage.Run(ctx, st)
		sr := StageReport{Stage: stage.Name(), Summary: summary, Duration: time.Since(start)}

		if err != nil {
			sr.Status = models.RunStatusFailed
			sr.Error = err.Error()
			report.Stages = append(report.Stages, sr)
			r.record(logger, func() error { return r.recorder.MarkAsFailed(ctx, run.ID, err.Error()) })
			logger.Error("Stage failed", zap.String("stage", stage.Name()), zap.Error(err))
			return report, fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		sr.Status = models.RunStatusCompleted
		report.Stages = append(report.Stages, sr)
		r.record(logger, func() error { return r.recorder.MarkAsCompleted(ctx, run.ID, encodeSummary(summary)) })
		logger.Info("Stage completed", zap.String("stage", stage.Name()), zap.Duration("duration", sr.Duration))
	}

	logger.Info("Pipeline finished")
	return report, nil
}

// record writes to the recorder if there is one. A recorder failure is
// logged and does not stop the build.
func (r *Runner) record(logger *zap.Logger, fn func() error) {
	if r.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn("Failed to record pipeline run", zap.Error(err))
	}
}

func encodeSummary(summary any) string {
	if summary == nil {
		return ""
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Sprintf("%v", summary)
	}
	return string(data)
}
